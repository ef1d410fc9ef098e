package download

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"galleryrip/internal/domain"
	"galleryrip/internal/metrics"
)

// drainPollInterval is how often a blocking stop re-checks that its tasks
// have drained.
const drainPollInterval = 100 * time.Millisecond

// queueManager owns the pending batches (one batch per post submission) and
// the flat running set. It has no lock of its own: every method except
// afterJobFinish assumes the caller holds the scheduler mutex, keeping what
// the scheduler sees and what is enqueued strictly consistent.
type queueManager struct {
	cfg       Config
	mu        *sync.Mutex
	cond      *sync.Cond
	reconcile *reconciler
	postLocks *keyedMutex

	pending [][]domain.QueueElement
	running []*imageDownload
}

func newQueueManager(cfg Config, mu *sync.Mutex, cond *sync.Cond, reconcile *reconciler, postLocks *keyedMutex) *queueManager {
	return &queueManager{
		cfg:       cfg,
		mu:        mu,
		cond:      cond,
		reconcile: reconcile,
		postLocks: postLocks,
	}
}

// addPending appends one post's elements as a new batch at the queue tail.
func (q *queueManager) addPending(batch []domain.QueueElement) {
	if len(batch) == 0 {
		return
	}
	q.pending = append(q.pending, append([]domain.QueueElement(nil), batch...))
	q.reportQueueState()
}

// clearPending removes pending elements, scoped to one post when
// postRecordID is non-empty.
func (q *queueManager) clearPending(postRecordID string) {
	kept := q.pending[:0]
	for _, batch := range q.pending {
		if postRecordID != "" && batch[0].PostRecordID != postRecordID {
			kept = append(kept, batch)
		}
	}
	if postRecordID == "" {
		kept = nil
	}
	q.pending = kept
	q.reportQueueState()
}

func (q *queueManager) pendingElements() []domain.QueueElement {
	var flat []domain.QueueElement
	for _, batch := range q.pending {
		flat = append(flat, batch...)
	}
	return flat
}

func (q *queueManager) isPending(postRecordID string) bool {
	for _, batch := range q.pending {
		if batch[0].PostRecordID == postRecordID {
			return true
		}
	}
	return false
}

func (q *queueManager) isRunning(postRecordID string) bool {
	for _, d := range q.running {
		if d.image.PostRecordID == postRecordID {
			return true
		}
	}
	return false
}

func (q *queueManager) runningCountByHost() map[domain.HostID]int {
	counts := make(map[domain.HostID]int, len(q.cfg.Registry.HostIDs()))
	for _, id := range q.cfg.Registry.HostIDs() {
		counts[id] = 0
	}
	for _, d := range q.running {
		counts[d.image.Host]++
	}
	return counts
}

// accept moves the given elements from pending to running and launches a
// retrying download task for each.
func (q *queueManager) accept(accepted []domain.QueueElement) {
	if len(accepted) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(accepted))
	for _, e := range accepted {
		drop[e.ImageID] = struct{}{}
	}
	kept := q.pending[:0]
	for _, batch := range q.pending {
		remaining := batch[:0]
		for _, e := range batch {
			if _, ok := drop[e.ImageID]; !ok {
				remaining = append(remaining, e)
			}
		}
		if len(remaining) > 0 {
			kept = append(kept, remaining)
		}
	}
	q.pending = kept

	settings := q.cfg.Settings.Settings().Normalize()
	for _, e := range accepted {
		image, err := q.cfg.Store.GetImage(context.Background(), e.ImageID)
		if err != nil {
			q.cfg.Logger.Warn("accepted image not found, skipping",
				slog.String("imageId", e.ImageID),
				slog.String("error", err.Error()))
			continue
		}
		task := newImageDownload(q.cfg, image, settings, q.postLocks)
		q.running = append(q.running, task)
		q.launch(task)
	}
	q.reportQueueState()
}

// launch runs the task through the retry executor on its own goroutine and
// performs the completion bookkeeping when it returns.
func (q *queueManager) launch(d *imageDownload) {
	q.cfg.Logger.Debug("scheduling download", slog.String("url", d.image.URL))
	metrics.DownloadsStartedTotal.Inc()
	go func() {
		err := runWithRetry(d, q.cfg.Logger)
		if err != nil && !d.stopped.Load() {
			q.cfg.Logger.Error("download failed, retries exhausted",
				slog.String("url", d.image.URL),
				slog.String("error", err.Error()))
			d.image.Status = domain.StatusError
			if updateErr := q.cfg.Store.UpdateImage(context.Background(), d.image); updateErr != nil {
				q.cfg.Logger.Warn("image state update failed",
					slog.String("imageId", d.image.ID),
					slog.String("error", updateErr.Error()))
			}
			metrics.DownloadFailuresTotal.Inc()
		}
		d.completed.Store(true)
		q.afterJobFinish(d)
		q.publishErrorCount()
		q.cfg.Logger.Debug("finished download", slog.String("url", d.image.URL))
	}()
}

// afterJobFinish removes the task from the running set, reconciles the post
// when no work remains for it, and wakes the scheduler. Runs on the task
// goroutine, so it takes the scheduler lock itself.
func (q *queueManager) afterJobFinish(d *imageDownload) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeRunning(d.image.ID)
	postID := d.image.PostRecordID
	if !q.isPending(postID) && !q.isRunning(postID) && !d.stopped.Load() {
		q.reconcile.finishPost(context.Background(), postID, true)
	}
	q.reportQueueState()
	q.cond.Signal()
}

func (q *queueManager) removeRunning(imageID string) {
	for i, d := range q.running {
		if d.image.ID == imageID {
			q.running = append(q.running[:i], q.running[i+1:]...)
			return
		}
	}
}

// clearRunning stops matching running tasks and blocks until every one of
// them has drained. Callers accept the synchronous wait; the poll loop is
// safe because completed is set before the task re-acquires the lock.
func (q *queueManager) clearRunning(postRecordID string) {
	var toStop []*imageDownload
	for _, d := range q.running {
		if postRecordID == "" || d.image.PostRecordID == postRecordID {
			toStop = append(toStop, d)
		}
	}
	for _, d := range toStop {
		d.stop()
	}
	for {
		remaining := 0
		for _, d := range toStop {
			if !d.completed.Load() {
				remaining++
			}
		}
		if remaining == 0 {
			break
		}
		time.Sleep(drainPollInterval)
	}
	for _, d := range toStop {
		q.removeRunning(d.image.ID)
	}
}

func (q *queueManager) queueState() domain.QueueState {
	ranks := make([]domain.Rank, 0, len(q.pending))
	remaining := 0
	for i, batch := range q.pending {
		ranks = append(ranks, domain.Rank{PostRecordID: batch[0].PostRecordID, Position: i + 1})
		remaining += len(batch)
	}
	return domain.QueueState{Running: len(q.running), Remaining: remaining, Rank: ranks}
}

// move reorders the pending batch containing the post. Boundary moves are
// no-ops. Running work is unaffected.
func (q *queueManager) move(postRecordID string, position domain.MovePosition) {
	index := -1
	for i, batch := range q.pending {
		if batch[0].PostRecordID == postRecordID {
			index = i
			break
		}
	}
	if index < 0 {
		return
	}
	switch position {
	case domain.MoveUp:
		if index > 0 {
			q.pending[index], q.pending[index-1] = q.pending[index-1], q.pending[index]
		}
	case domain.MoveDown:
		if index < len(q.pending)-1 {
			q.pending[index], q.pending[index+1] = q.pending[index+1], q.pending[index]
		}
	case domain.MoveTop:
		if index > 0 {
			batch := q.pending[index]
			q.pending = append(q.pending[:index], q.pending[index+1:]...)
			q.pending = append([][]domain.QueueElement{batch}, q.pending...)
		}
	case domain.MoveBottom:
		if index < len(q.pending)-1 {
			batch := q.pending[index]
			q.pending = append(q.pending[:index], q.pending[index+1:]...)
			q.pending = append(q.pending, batch)
		}
	}
	q.reportQueueState()
}

func (q *queueManager) reportQueueState() {
	state := q.queueState()
	metrics.RunningDownloads.Set(float64(state.Running))
	metrics.PendingImages.Set(float64(state.Remaining))
	q.cfg.Events.Publish(domain.QueueStateEvent{State: state})
}

func (q *queueManager) publishErrorCount() {
	count, err := q.cfg.Store.CountImagesInError(context.Background())
	if err != nil {
		q.cfg.Logger.Warn("error count query failed", slog.String("error", err.Error()))
		return
	}
	metrics.ImagesInError.Set(float64(count))
	q.cfg.Events.Publish(domain.ErrorCountEvent{Count: count})
}
