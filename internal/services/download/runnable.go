package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"galleryrip/internal/domain"
	"galleryrip/internal/metrics"
)

// progressPersistInterval is how often in-flight byte counters are flushed to
// the store. These writes are best effort; the terminal state update is the
// durable one.
const progressPersistInterval = 100 * time.Millisecond

// imageDownload drives one image through
// pending -> downloading -> finished|error|stopped.
type imageDownload struct {
	cfg       Config
	image     domain.ImageRecord
	settings  domain.Settings
	postLocks *keyedMutex

	ctx    context.Context
	cancel context.CancelFunc

	stopped   atomic.Bool
	completed atomic.Bool
}

func newImageDownload(cfg Config, image domain.ImageRecord, settings domain.Settings, postLocks *keyedMutex) *imageDownload {
	ctx, cancel := context.WithCancel(context.Background())
	return &imageDownload{
		cfg:       cfg,
		image:     image,
		settings:  settings,
		postLocks: postLocks,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// stop flags the task and aborts its in-flight network I/O. The caller polls
// completed to learn when the task has fully drained.
func (d *imageDownload) stop() {
	d.stopped.Store(true)
	d.cancel()
}

// run executes one attempt. A stop request suppresses the error so the retry
// executor treats the attempt as benign.
func (d *imageDownload) run() error {
	if d.stopped.Load() {
		return nil
	}
	err := d.attempt()
	if err == nil || d.stopped.Load() {
		return nil
	}
	d.image.Status = domain.StatusError
	if updateErr := d.cfg.Store.UpdateImage(context.Background(), d.image); updateErr != nil {
		d.cfg.Logger.Warn("image state update failed",
			slog.String("imageId", d.image.ID),
			slog.String("error", updateErr.Error()))
	}
	d.cfg.Events.Publish(domain.ImageUpdatedEvent{Image: d.image})
	return err
}

func (d *imageDownload) attempt() error {
	ctx := context.Background()

	d.image.Status = domain.StatusDownloading
	d.image.Downloaded = 0
	if err := d.cfg.Store.UpdateImage(ctx, d.image); err != nil {
		return fmt.Errorf("persist downloading state: %w", err)
	}
	d.cfg.Events.Publish(domain.ImageUpdatedEvent{Image: d.image})

	if err := d.markPostDownloading(ctx); err != nil {
		return err
	}

	resolver, ok := d.cfg.Registry.ResolverFor(d.image.URL)
	if !ok {
		return fmt.Errorf("no resolver supports %s", d.image.URL)
	}
	resolved, err := resolver.Resolve(d.ctx, d.image)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", d.image.URL, err)
	}
	d.cfg.Logger.Debug("image resolved",
		slog.String("url", d.image.URL),
		slog.String("name", resolved.Name),
		slog.String("host", resolver.HostName()))

	var transferred atomic.Int64
	tickCtx, stopTicker := context.WithCancel(d.ctx)
	tickerDone := make(chan struct{})
	go d.persistProgress(tickCtx, &transferred, tickerDone)

	result, err := d.cfg.Fetcher.Fetch(d.ctx, resolved.URL, fetchOptions(d.settings, &transferred))
	stopTicker()
	<-tickerDone
	if err != nil {
		return fmt.Errorf("fetch %s: %w", resolved.URL, err)
	}

	return d.finalize(ctx, resolved.Name, result.TempPath, result.MimeType, result.Size, transferred.Load())
}

// finalize moves the temp file into the post directory and settles the
// terminal state. Runs under the per-post lock so sibling images cannot race
// on the post's counters.
func (d *imageDownload) finalize(ctx context.Context, name, tempPath, mimeType string, size, transferred int64) error {
	unlock := d.postLocks.lock(d.image.PostRecordID)
	defer unlock()

	post, err := d.cfg.Store.GetPost(ctx, d.image.PostRecordID)
	if err != nil {
		d.discardTemp(tempPath)
		return fmt.Errorf("load post %s: %w", d.image.PostRecordID, err)
	}

	if err := d.commitFile(post, name, tempPath, mimeType); err != nil {
		return err
	}

	// d.image.Size only advances after the post update is persisted, so an
	// attempt that fails between fetch and persist repeats the accumulation
	// on its retry instead of losing it.
	if d.image.Size < 0 && size > 0 {
		// First time the byte size is known for this image.
		if post.Size < 0 {
			post.Size = 0
		}
		post.Size += size
	}

	finished := transferred == size && size > 0
	if finished {
		post.Done++
		post.Downloaded += size
	}

	if err := d.cfg.Store.UpdatePost(ctx, post); err != nil {
		return fmt.Errorf("persist post %s: %w", post.ID, err)
	}
	d.cfg.Events.Publish(domain.PostUpdatedEvent{Post: post})

	d.image.Size = size
	d.image.Downloaded = transferred
	if finished {
		d.image.Status = domain.StatusFinished
		metrics.DownloadedBytesTotal.Add(float64(size))
	} else {
		d.image.Status = domain.StatusError
	}

	if err := d.cfg.Store.UpdateImage(ctx, d.image); err != nil {
		return fmt.Errorf("persist image %s: %w", d.image.ID, err)
	}
	d.cfg.Events.Publish(domain.ImageUpdatedEvent{Image: d.image})
	return nil
}

// commitFile renames the temp file into the post directory under its final
// sanitized name. The temp file is removed regardless of outcome.
func (d *imageDownload) commitFile(post domain.PostRecord, name, tempPath, mimeType string) (err error) {
	defer d.discardTemp(tempPath)

	ext, ok := extensionForMimeType(mimeType)
	if !ok {
		return fmt.Errorf("unsupported image type %q for %s", mimeType, d.image.URL)
	}

	filename := finalFilename(name, ext, d.image.Index, d.settings.ForceOrder)
	dir := filepath.Join(post.DownloadDirectory, post.FolderName)
	if err := d.cfg.FS.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	d.image.Filename = filename
	dest := filepath.Join(dir, filename)
	if err := moveFile(d.cfg.FS, tempPath, dest); err != nil {
		return fmt.Errorf("move %s to %s: %w", tempPath, dest, err)
	}
	return nil
}

func (d *imageDownload) discardTemp(tempPath string) {
	if tempPath == "" {
		return
	}
	if err := d.cfg.FS.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		d.cfg.Logger.Debug("temp file cleanup failed",
			slog.String("path", tempPath),
			slog.String("error", err.Error()))
	}
}

// markPostDownloading flips the post to downloading when its first image
// starts, and dispatches the courtesy acknowledgement exactly once per
// transition.
func (d *imageDownload) markPostDownloading(ctx context.Context) error {
	unlock := d.postLocks.lock(d.image.PostRecordID)
	defer unlock()

	post, err := d.cfg.Store.GetPost(ctx, d.image.PostRecordID)
	if err != nil {
		return fmt.Errorf("load post %s: %w", d.image.PostRecordID, err)
	}
	if post.Status == domain.StatusDownloading {
		return nil
	}
	post.Status = domain.StatusDownloading
	if err := d.cfg.Store.UpdatePost(ctx, post); err != nil {
		return fmt.Errorf("persist post %s: %w", post.ID, err)
	}
	d.cfg.Events.Publish(domain.PostUpdatedEvent{Post: post})
	if d.cfg.Notifier != nil {
		go d.cfg.Notifier.NotifyStarted(post)
	}
	return nil
}

func (d *imageDownload) persistProgress(ctx context.Context, transferred *atomic.Int64, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(progressPersistInterval)
	defer ticker.Stop()
	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := transferred.Load()
			if current == last {
				continue
			}
			last = current
			if err := d.cfg.Store.UpdateImageProgress(context.Background(), d.image.ID, current, d.image.Size); err != nil {
				d.cfg.Logger.Debug("progress update failed",
					slog.String("imageId", d.image.ID),
					slog.String("error", err.Error()))
			}
		}
	}
}
