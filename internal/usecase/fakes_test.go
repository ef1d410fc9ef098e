package usecase

import (
	"context"
	"sync"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

// stubStore is a hand-rolled DataStore double. Only the methods a use case
// touches carry behavior; the rest return zero values.
type stubStore struct {
	mu sync.Mutex

	posts  map[string]domain.PostRecord
	images map[string][]domain.ImageRecord

	created      []domain.PostRecord
	deleted      [][]string
	nonCompleted []string

	createErr error
	listErr   error
	deleteErr error
	findErr   error
}

func newStubStore() *stubStore {
	return &stubStore{
		posts:  make(map[string]domain.PostRecord),
		images: make(map[string][]domain.ImageRecord),
	}
}

func (s *stubStore) CreatePostWithImages(ctx context.Context, post domain.PostRecord, images []domain.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.posts[post.ID] = post
	s.images[post.ID] = images
	s.created = append(s.created, post)
	return nil
}

func (s *stubStore) GetPost(ctx context.Context, id string) (domain.PostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return domain.PostRecord{}, domain.ErrNotFound
	}
	return post, nil
}

func (s *stubStore) ListPosts(ctx context.Context) ([]domain.PostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.PostRecord, 0, len(s.posts))
	for _, post := range s.posts {
		out = append(out, post)
	}
	return out, nil
}

func (s *stubStore) UpdatePost(ctx context.Context, post domain.PostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.ID] = post
	return nil
}

func (s *stubStore) UpdatePostsAndImages(ctx context.Context, posts []domain.PostRecord, images []domain.ImageRecord) error {
	return nil
}

func (s *stubStore) DeletePosts(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for _, id := range ids {
		delete(s.posts, id)
		delete(s.images, id)
	}
	s.deleted = append(s.deleted, ids)
	return nil
}

func (s *stubStore) FindNonCompletedPostIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.nonCompleted, nil
}

func (s *stubStore) GetImage(ctx context.Context, id string) (domain.ImageRecord, error) {
	return domain.ImageRecord{}, domain.ErrNotFound
}

func (s *stubStore) FindImagesByPost(ctx context.Context, postRecordID string) ([]domain.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.images[postRecordID], nil
}

func (s *stubStore) FindImagesByPostAndStatus(ctx context.Context, postRecordID string, status domain.Status) ([]domain.ImageRecord, error) {
	return nil, nil
}

func (s *stubStore) FindIncompleteImagesByPost(ctx context.Context, postRecordID string) ([]domain.ImageRecord, error) {
	return nil, nil
}

func (s *stubStore) UpdateImage(ctx context.Context, image domain.ImageRecord) error { return nil }

func (s *stubStore) UpdateImageProgress(ctx context.Context, id string, downloaded, size int64) error {
	return nil
}

func (s *stubStore) StopIncompleteImagesByPost(ctx context.Context, postRecordID string) error {
	return nil
}

func (s *stubStore) CountImagesInError(ctx context.Context) (int64, error) { return 0, nil }

type stubResolver struct {
	name    string
	id      domain.HostID
	matches func(url string) bool
}

func (r stubResolver) HostName() string      { return r.name }
func (r stubResolver) HostID() domain.HostID { return r.id }
func (r stubResolver) IsSupported(url string) bool {
	if r.matches == nil {
		return true
	}
	return r.matches(url)
}
func (r stubResolver) Resolve(ctx context.Context, image domain.ImageRecord) (ports.ResolvedImage, error) {
	return ports.ResolvedImage{URL: image.URL, Name: "img.jpg"}, nil
}

type stubRegistry struct {
	resolvers []stubResolver
}

func (r stubRegistry) ResolverFor(url string) (ports.Resolver, bool) {
	for _, resolver := range r.resolvers {
		if resolver.IsSupported(url) {
			return resolver, true
		}
	}
	return nil, false
}

func (r stubRegistry) HostIDs() []domain.HostID {
	ids := make([]domain.HostID, 0, len(r.resolvers))
	for _, resolver := range r.resolvers {
		ids = append(ids, resolver.id)
	}
	return ids
}

func (r stubRegistry) HostName(id domain.HostID) string {
	for _, resolver := range r.resolvers {
		if resolver.id == id {
			return resolver.name
		}
	}
	return ""
}

type stubSink struct {
	mu     sync.Mutex
	events []any
}

func (s *stubSink) Publish(event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *stubSink) all() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.events...)
}

type stubQueue struct {
	enqueued [][]domain.QueueElement
}

func (q *stubQueue) Enqueue(elements []domain.QueueElement) {
	q.enqueued = append(q.enqueued, elements)
}

type stubStopper struct {
	calls [][]string
}

func (s *stubStopper) Stop(ctx context.Context, postRecordIDs []string) {
	s.calls = append(s.calls, postRecordIDs)
}
