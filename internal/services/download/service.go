package download

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"galleryrip/internal/domain"
)

// defaultPoolSize caps total in-flight downloads when no explicit global
// limit is configured.
const defaultPoolSize = 24

// Service is the download engine: the admission-control loop plus the
// stop/restart/move control surface. One coarse mutex and condition variable
// are shared with the queue manager so admission decisions always see a
// consistent queue.
type Service struct {
	cfg       Config
	mu        sync.Mutex
	cond      *sync.Cond
	queue     *queueManager
	reconcile *reconciler

	// generation invalidates older scheduler loops; Init bumps it so a
	// replaced loop observes the change and exits.
	generation int
	loopDone   chan struct{}
}

func NewService(cfg Config) *Service {
	cfg = cfg.withDefaults()
	s := &Service{cfg: cfg}
	s.cond = sync.NewCond(&s.mu)
	s.reconcile = &reconciler{cfg: cfg}
	s.queue = newQueueManager(cfg, &s.mu, s.cond, s.reconcile, &keyedMutex{})
	return s
}

// Init starts the admission loop, replacing any previous one.
func (s *Service) Init() {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	prev := s.loopDone
	done := make(chan struct{})
	s.loopDone = done
	s.cond.Broadcast()
	s.mu.Unlock()

	if prev != nil {
		<-prev
	}
	go s.run(gen, done)
}

// Halt stops the admission loop. Running downloads are not touched.
func (s *Service) Halt() {
	s.mu.Lock()
	s.generation++
	prev := s.loopDone
	s.loopDone = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	if prev != nil {
		<-prev
	}
}

// Signal wakes the admission loop. Called on enqueue, completion and
// settings changes that affect the caps.
func (s *Service) Signal() {
	s.mu.Lock()
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *Service) run(gen int, done chan struct{}) {
	defer close(done)
	s.cfg.Logger.Info("download scheduler started")
	s.mu.Lock()
	for s.generation == gen {
		s.queue.accept(s.admit())
		if s.generation != gen {
			break
		}
		s.cond.Wait()
	}
	s.mu.Unlock()
	s.cfg.Logger.Info("download scheduler stopped")
}

// admit computes which pending elements may start now. Per host the headroom
// is the per-host cap minus its running count; the global cap is a hard
// ceiling consumed in ascending host id order. Within a host, candidates
// keep batch order then index order.
func (s *Service) admit() []domain.QueueElement {
	pendingByHost := make(map[domain.HostID][]domain.QueueElement)
	for _, e := range s.queue.pendingElements() {
		pendingByHost[e.Host] = append(pendingByHost[e.Host], e)
	}
	if len(pendingByHost) == 0 {
		return nil
	}

	hosts := make([]domain.HostID, 0, len(pendingByHost))
	for h := range pendingByHost {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i] < hosts[j] })

	running := s.queue.runningCountByHost()
	totalRunning := 0
	for _, n := range running {
		totalRunning += n
	}

	settings := s.cfg.Settings.Settings().Normalize()
	globalCap := settings.MaxGlobalConcurrent
	if globalCap == 0 {
		globalCap = defaultPoolSize
	}
	headroom := globalCap - totalRunning

	var accepted []domain.QueueElement
	for _, h := range hosts {
		if headroom <= 0 {
			break
		}
		canRun := settings.MaxConcurrentPerHost - running[h]
		if canRun > headroom {
			canRun = headroom
		}
		if canRun <= 0 {
			continue
		}
		candidates := pendingByHost[h]
		if canRun > len(candidates) {
			canRun = len(candidates)
		}
		accepted = append(accepted, candidates[:canRun]...)
		headroom -= canRun
	}
	return accepted
}

// Enqueue adds one post's elements as a new pending batch and wakes the
// scheduler.
func (s *Service) Enqueue(batch []domain.QueueElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.addPending(batch)
	s.cond.Signal()
}

// QueueState snapshots the admission queue.
func (s *Service) QueueState() domain.QueueState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.queueState()
}

// Move reorders the pending batch of a post. It never affects running work.
func (s *Service) Move(postRecordID string, position domain.MovePosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.move(postRecordID, position)
}

// Stop cancels downloads for the given posts, or for every non-completed
// post when none are given. It blocks until all matching running tasks have
// drained, then force-stops the remaining incomplete images and reconciles
// each post.
func (s *Service) Stop(ctx context.Context, postRecordIDs []string) {
	if len(postRecordIDs) > 0 {
		s.mu.Lock()
		for _, id := range postRecordIDs {
			s.stopPost(ctx, id)
		}
		s.mu.Unlock()
		s.cfg.Events.Publish(domain.StoppedEvent{PostRecordIDs: postRecordIDs})
		return
	}

	s.mu.Lock()
	s.queue.clearPending("")
	s.queue.clearRunning("")
	ids, err := s.cfg.Store.FindNonCompletedPostIDs(ctx)
	if err != nil {
		s.cfg.Logger.Warn("stop: list non-completed posts failed", slog.String("error", err.Error()))
	}
	for _, id := range ids {
		s.forceStop(ctx, id)
	}
	s.mu.Unlock()
	s.cfg.Events.Publish(domain.StoppedEvent{PostRecordIDs: []string{domain.StoppedAll}})
}

func (s *Service) stopPost(ctx context.Context, postRecordID string) {
	s.queue.clearPending(postRecordID)
	s.queue.clearRunning(postRecordID)
	s.forceStop(ctx, postRecordID)
}

func (s *Service) forceStop(ctx context.Context, postRecordID string) {
	if err := s.cfg.Store.StopIncompleteImagesByPost(ctx, postRecordID); err != nil {
		s.cfg.Logger.Warn("stop: force-stopping images failed",
			slog.String("postRecordId", postRecordID),
			slog.String("error", err.Error()))
	}
	s.reconcile.finishPost(ctx, postRecordID, false)
}

// Restart resets the given posts (or all posts when none are given) back to
// pending and re-enqueues their incomplete images, oldest post first. Posts
// already pending or still running are skipped, making repeated restarts
// idempotent.
func (s *Service) Restart(ctx context.Context, postRecordIDs []string) {
	posts, err := s.restartCandidates(ctx, postRecordIDs)
	if err != nil {
		s.cfg.Logger.Warn("restart: load posts failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type restartItem struct {
		post   domain.PostRecord
		images []domain.ImageRecord
	}
	var toProcess []restartItem
	for _, post := range posts {
		if s.queue.isPending(post.ID) || s.queue.isRunning(post.ID) {
			continue
		}
		images, err := s.cfg.Store.FindIncompleteImagesByPost(ctx, post.ID)
		if err != nil {
			s.cfg.Logger.Warn("restart: load images failed",
				slog.String("postRecordId", post.ID),
				slog.String("error", err.Error()))
			continue
		}
		if len(images) == 0 {
			continue
		}
		post.Status = domain.StatusPending
		for i := range images {
			images[i].Status = domain.StatusPending
			images[i].Downloaded = 0
		}
		toProcess = append(toProcess, restartItem{post: post, images: images})
	}
	if len(toProcess) == 0 {
		return
	}

	batchPosts := make([]domain.PostRecord, 0, len(toProcess))
	var batchImages []domain.ImageRecord
	for _, item := range toProcess {
		batchPosts = append(batchPosts, item.post)
		batchImages = append(batchImages, item.images...)
	}
	if err := s.cfg.Store.UpdatePostsAndImages(ctx, batchPosts, batchImages); err != nil {
		s.cfg.Logger.Warn("restart: persist batch failed", slog.String("error", err.Error()))
		return
	}

	sort.Slice(toProcess, func(i, j int) bool {
		return toProcess[i].post.AddedAt.Before(toProcess[j].post.AddedAt)
	})
	for _, item := range toProcess {
		sort.Slice(item.images, func(i, j int) bool {
			return item.images[i].Index < item.images[j].Index
		})
		batch := make([]domain.QueueElement, 0, len(item.images))
		for _, image := range item.images {
			batch = append(batch, domain.QueueElement{
				ImageID:      image.ID,
				PostRecordID: image.PostRecordID,
				Host:         image.Host,
			})
		}
		s.queue.addPending(batch)
		s.cfg.Events.Publish(domain.PostUpdatedEvent{Post: item.post})
	}
	s.cond.Signal()
}

func (s *Service) restartCandidates(ctx context.Context, postRecordIDs []string) ([]domain.PostRecord, error) {
	if len(postRecordIDs) == 0 {
		return s.cfg.Store.ListPosts(ctx)
	}
	posts := make([]domain.PostRecord, 0, len(postRecordIDs))
	for _, id := range postRecordIDs {
		post, err := s.cfg.Store.GetPost(ctx, id)
		if err != nil {
			s.cfg.Logger.Warn("restart: post not found",
				slog.String("postRecordId", id),
				slog.String("error", err.Error()))
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}
