package usecase

import (
	"context"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

// PostStopper halts scheduling and in-flight downloads for a set of posts.
// An empty slice means every non-completed post.
type PostStopper interface {
	Stop(ctx context.Context, postRecordIDs []string)
}

type DeletePosts struct {
	Store   ports.DataStore
	Events  ports.EventSink
	Control PostStopper
}

// Execute stops the posts' downloads, then removes the posts and their
// images.
func (uc DeletePosts) Execute(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if uc.Control != nil {
		uc.Control.Stop(ctx, ids)
	}
	if err := uc.Store.DeletePosts(ctx, ids); err != nil {
		return wrapRepo(err)
	}
	if uc.Events != nil {
		uc.Events.Publish(domain.PostDeletedEvent{PostRecordIDs: ids})
	}
	return nil
}

type ClearFinished struct {
	Store  ports.DataStore
	Events ports.EventSink
}

// Execute removes every finished post and returns the removed ids.
func (uc ClearFinished) Execute(ctx context.Context) ([]string, error) {
	posts, err := uc.Store.ListPosts(ctx)
	if err != nil {
		return nil, wrapRepo(err)
	}
	var ids []string
	for _, post := range posts {
		if post.Status == domain.StatusFinished {
			ids = append(ids, post.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := uc.Store.DeletePosts(ctx, ids); err != nil {
		return nil, wrapRepo(err)
	}
	if uc.Events != nil {
		uc.Events.Publish(domain.PostDeletedEvent{PostRecordIDs: ids})
	}
	return ids, nil
}
