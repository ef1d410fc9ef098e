package cached

import (
	"context"
	"testing"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

// innerStore implements only the methods the cache layer exercises; the
// embedded nil interface panics on anything else, which would flag a test
// reaching past the wrapper.
type innerStore struct {
	ports.DataStore
	posts map[string]domain.PostRecord
	gets  int
}

func newInnerStore() *innerStore {
	return &innerStore{posts: map[string]domain.PostRecord{}}
}

func (s *innerStore) GetPost(ctx context.Context, id string) (domain.PostRecord, error) {
	s.gets++
	post, ok := s.posts[id]
	if !ok {
		return domain.PostRecord{}, domain.ErrNotFound
	}
	return post, nil
}

func (s *innerStore) UpdatePost(ctx context.Context, post domain.PostRecord) error {
	s.posts[post.ID] = post
	return nil
}

func (s *innerStore) UpdatePostsAndImages(ctx context.Context, posts []domain.PostRecord, images []domain.ImageRecord) error {
	for _, post := range posts {
		s.posts[post.ID] = post
	}
	return nil
}

func (s *innerStore) DeletePosts(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(s.posts, id)
	}
	return nil
}

func TestGetPostReadsThroughOnce(t *testing.T) {
	inner := newInnerStore()
	inner.posts["p1"] = domain.PostRecord{ID: "p1", Title: "Gallery"}
	store := NewStore(inner)

	for i := 0; i < 3; i++ {
		post, err := store.GetPost(context.Background(), "p1")
		if err != nil {
			t.Fatalf("GetPost: %v", err)
		}
		if post.Title != "Gallery" {
			t.Errorf("title = %q", post.Title)
		}
	}
	if inner.gets != 1 {
		t.Errorf("inner reads = %d, want 1", inner.gets)
	}
}

func TestGetPostDoesNotCacheMisses(t *testing.T) {
	inner := newInnerStore()
	store := NewStore(inner)

	if _, err := store.GetPost(context.Background(), "p1"); err == nil {
		t.Fatal("expected not found")
	}

	inner.posts["p1"] = domain.PostRecord{ID: "p1"}
	if _, err := store.GetPost(context.Background(), "p1"); err != nil {
		t.Fatalf("GetPost after insert: %v", err)
	}
}

func TestUpdatePostInvalidatesCache(t *testing.T) {
	inner := newInnerStore()
	inner.posts["p1"] = domain.PostRecord{ID: "p1", Done: 0}
	store := NewStore(inner)

	if _, err := store.GetPost(context.Background(), "p1"); err != nil {
		t.Fatalf("GetPost: %v", err)
	}

	if err := store.UpdatePost(context.Background(), domain.PostRecord{ID: "p1", Done: 5}); err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}

	post, err := store.GetPost(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.Done != 5 {
		t.Errorf("Done = %d, want 5 (stale cache entry)", post.Done)
	}
}

func TestBatchUpdateInvalidatesEveryPost(t *testing.T) {
	inner := newInnerStore()
	inner.posts["p1"] = domain.PostRecord{ID: "p1"}
	inner.posts["p2"] = domain.PostRecord{ID: "p2"}
	store := NewStore(inner)

	ctx := context.Background()
	_, _ = store.GetPost(ctx, "p1")
	_, _ = store.GetPost(ctx, "p2")

	err := store.UpdatePostsAndImages(ctx, []domain.PostRecord{
		{ID: "p1", Done: 1},
		{ID: "p2", Done: 2},
	}, nil)
	if err != nil {
		t.Fatalf("UpdatePostsAndImages: %v", err)
	}

	p1, _ := store.GetPost(ctx, "p1")
	p2, _ := store.GetPost(ctx, "p2")
	if p1.Done != 1 || p2.Done != 2 {
		t.Errorf("stale reads: p1.Done=%d p2.Done=%d", p1.Done, p2.Done)
	}
}

func TestDeletePostsInvalidatesCache(t *testing.T) {
	inner := newInnerStore()
	inner.posts["p1"] = domain.PostRecord{ID: "p1"}
	store := NewStore(inner)

	ctx := context.Background()
	if _, err := store.GetPost(ctx, "p1"); err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if err := store.DeletePosts(ctx, []string{"p1"}); err != nil {
		t.Fatalf("DeletePosts: %v", err)
	}
	if _, err := store.GetPost(ctx, "p1"); err == nil {
		t.Error("deleted post still served from cache")
	}
}
