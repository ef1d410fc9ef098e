// Package cached wraps a DataStore with a small read-through cache for
// post lookups. Posts are read on every scheduler pass and on every image
// finalization, while mutations are comparatively rare.
package cached

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

const (
	defaultCacheSize = 512
	defaultCacheTTL  = 5 * time.Second
)

type Store struct {
	ports.DataStore
	posts *expirable.LRU[string, domain.PostRecord]
}

func NewStore(inner ports.DataStore) *Store {
	return &Store{
		DataStore: inner,
		posts:     expirable.NewLRU[string, domain.PostRecord](defaultCacheSize, nil, defaultCacheTTL),
	}
}

func (s *Store) GetPost(ctx context.Context, id string) (domain.PostRecord, error) {
	if post, ok := s.posts.Get(id); ok {
		return post, nil
	}
	post, err := s.DataStore.GetPost(ctx, id)
	if err != nil {
		return domain.PostRecord{}, err
	}
	s.posts.Add(id, post)
	return post, nil
}

func (s *Store) UpdatePost(ctx context.Context, post domain.PostRecord) error {
	err := s.DataStore.UpdatePost(ctx, post)
	s.posts.Remove(post.ID)
	return err
}

func (s *Store) UpdatePostsAndImages(ctx context.Context, posts []domain.PostRecord, images []domain.ImageRecord) error {
	err := s.DataStore.UpdatePostsAndImages(ctx, posts, images)
	for _, post := range posts {
		s.posts.Remove(post.ID)
	}
	return err
}

func (s *Store) DeletePosts(ctx context.Context, ids []string) error {
	err := s.DataStore.DeletePosts(ctx, ids)
	for _, id := range ids {
		s.posts.Remove(id)
	}
	return err
}
