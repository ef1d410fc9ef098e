package usecase

import (
	"context"
	"errors"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

type ListPosts struct {
	Store ports.DataStore
}

func (uc ListPosts) Execute(ctx context.Context) ([]domain.PostRecord, error) {
	posts, err := uc.Store.ListPosts(ctx)
	if err != nil {
		return nil, wrapRepo(err)
	}
	return posts, nil
}

type GetPostImages struct {
	Store ports.DataStore
}

func (uc GetPostImages) Execute(ctx context.Context, postRecordID string) ([]domain.ImageRecord, error) {
	if _, err := uc.Store.GetPost(ctx, postRecordID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, wrapRepo(err)
	}
	images, err := uc.Store.FindImagesByPost(ctx, postRecordID)
	if err != nil {
		return nil, wrapRepo(err)
	}
	return images, nil
}
