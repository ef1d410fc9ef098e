package usecase

import (
	"context"
	"log/slog"

	"galleryrip/internal/domain/ports"
)

// RestoreState settles posts left mid-download by a previous run. Nothing is
// scheduled yet at startup, so an unscoped stop sweep marks interrupted
// images stopped and reconciles each post's status.
type RestoreState struct {
	Store   ports.DataStore
	Control PostStopper
	Logger  *slog.Logger
}

func (uc RestoreState) Execute(ctx context.Context) error {
	ids, err := uc.Store.FindNonCompletedPostIDs(ctx)
	if err != nil {
		return wrapRepo(err)
	}
	if len(ids) == 0 {
		return nil
	}
	if uc.Logger != nil {
		uc.Logger.Info("settling interrupted downloads", slog.Int("posts", len(ids)))
	}
	uc.Control.Stop(ctx, nil)
	return nil
}
