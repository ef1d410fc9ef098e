package download

import (
	"context"
	"errors"
	"log/slog"

	"galleryrip/internal/domain"
)

// reconciler settles a post's aggregate status once no pending or running
// work remains for it.
type reconciler struct {
	cfg Config
}

// finishPost applies the completion rules: any image in error taints the
// post, an incomplete post without errors was stopped, and a full post is
// finished. automatic marks natural completion, which is the only trigger
// allowed to clear-completed.
func (r *reconciler) finishPost(ctx context.Context, postRecordID string, automatic bool) {
	post, err := r.cfg.Store.GetPost(ctx, postRecordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		r.cfg.Logger.Warn("reconcile: load post failed",
			slog.String("postRecordId", postRecordID),
			slog.String("error", err.Error()))
		return
	}

	failed, err := r.cfg.Store.FindImagesByPostAndStatus(ctx, postRecordID, domain.StatusError)
	if err != nil {
		r.cfg.Logger.Warn("reconcile: load images failed",
			slog.String("postRecordId", postRecordID),
			slog.String("error", err.Error()))
		return
	}

	switch {
	case len(failed) > 0:
		post.Status = domain.StatusError
	case post.Done < post.Total:
		post.Status = domain.StatusStopped
	default:
		post.Status = domain.StatusFinished
	}

	if err := r.cfg.Store.UpdatePost(ctx, post); err != nil {
		r.cfg.Logger.Warn("reconcile: persist post failed",
			slog.String("postRecordId", postRecordID),
			slog.String("error", err.Error()))
		return
	}
	r.cfg.Events.Publish(domain.PostUpdatedEvent{Post: post})

	if post.Status == domain.StatusFinished && automatic && r.cfg.Settings.Settings().ClearCompleted {
		if err := r.cfg.Store.DeletePosts(ctx, []string{post.ID}); err != nil {
			r.cfg.Logger.Warn("reconcile: clear completed failed",
				slog.String("postRecordId", postRecordID),
				slog.String("error", err.Error()))
			return
		}
		r.cfg.Events.Publish(domain.PostDeletedEvent{PostRecordIDs: []string{post.ID}})
	}
}
