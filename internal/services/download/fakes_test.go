package download

import (
	"context"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

// fakeStore is an in-memory DataStore safe for concurrent use.
type fakeStore struct {
	mu      sync.Mutex
	posts   map[string]domain.PostRecord
	images  map[string]domain.ImageRecord
	deleted [][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts:  make(map[string]domain.PostRecord),
		images: make(map[string]domain.ImageRecord),
	}
}

func (s *fakeStore) putPost(post domain.PostRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.ID] = post
}

func (s *fakeStore) putImage(image domain.ImageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[image.ID] = image
}

func (s *fakeStore) post(id string) domain.PostRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts[id]
}

func (s *fakeStore) image(id string) domain.ImageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images[id]
}

func (s *fakeStore) CreatePostWithImages(ctx context.Context, post domain.PostRecord, images []domain.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[post.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.posts[post.ID] = post
	for _, image := range images {
		s.images[image.ID] = image
	}
	return nil
}

func (s *fakeStore) GetPost(ctx context.Context, id string) (domain.PostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return domain.PostRecord{}, domain.ErrNotFound
	}
	return post, nil
}

func (s *fakeStore) ListPosts(ctx context.Context) ([]domain.PostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts := make([]domain.PostRecord, 0, len(s.posts))
	for _, post := range s.posts {
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].AddedAt.Before(posts[j].AddedAt) })
	return posts, nil
}

func (s *fakeStore) UpdatePost(ctx context.Context, post domain.PostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[post.ID]; !ok {
		return domain.ErrNotFound
	}
	s.posts[post.ID] = post
	return nil
}

func (s *fakeStore) UpdatePostsAndImages(ctx context.Context, posts []domain.PostRecord, images []domain.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, post := range posts {
		s.posts[post.ID] = post
	}
	for _, image := range images {
		s.images[image.ID] = image
	}
	return nil
}

func (s *fakeStore) DeletePosts(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ids)
	for _, id := range ids {
		delete(s.posts, id)
		for imageID, image := range s.images {
			if image.PostRecordID == id {
				delete(s.images, imageID)
			}
		}
	}
	return nil
}

func (s *fakeStore) FindNonCompletedPostIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, post := range s.posts {
		if post.Status != domain.StatusFinished {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeStore) GetImage(ctx context.Context, id string) (domain.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, ok := s.images[id]
	if !ok {
		return domain.ImageRecord{}, domain.ErrNotFound
	}
	return image, nil
}

func (s *fakeStore) FindImagesByPost(ctx context.Context, postRecordID string) ([]domain.ImageRecord, error) {
	return s.findImages(postRecordID, func(domain.ImageRecord) bool { return true }), nil
}

func (s *fakeStore) FindImagesByPostAndStatus(ctx context.Context, postRecordID string, status domain.Status) ([]domain.ImageRecord, error) {
	return s.findImages(postRecordID, func(image domain.ImageRecord) bool { return image.Status == status }), nil
}

func (s *fakeStore) FindIncompleteImagesByPost(ctx context.Context, postRecordID string) ([]domain.ImageRecord, error) {
	return s.findImages(postRecordID, func(image domain.ImageRecord) bool { return image.Status != domain.StatusFinished }), nil
}

func (s *fakeStore) findImages(postRecordID string, match func(domain.ImageRecord) bool) []domain.ImageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var images []domain.ImageRecord
	for _, image := range s.images {
		if image.PostRecordID == postRecordID && match(image) {
			images = append(images, image)
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Index < images[j].Index })
	return images
}

func (s *fakeStore) UpdateImage(ctx context.Context, image domain.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[image.ID]; !ok {
		return domain.ErrNotFound
	}
	s.images[image.ID] = image
	return nil
}

func (s *fakeStore) UpdateImageProgress(ctx context.Context, id string, downloaded, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, ok := s.images[id]
	if !ok {
		return domain.ErrNotFound
	}
	image.Downloaded = downloaded
	image.Size = size
	s.images[id] = image
	return nil
}

func (s *fakeStore) StopIncompleteImagesByPost(ctx context.Context, postRecordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, image := range s.images {
		if image.PostRecordID == postRecordID && image.Status != domain.StatusFinished {
			image.Status = domain.StatusStopped
			s.images[id] = image
		}
	}
	return nil
}

func (s *fakeStore) CountImagesInError(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, image := range s.images {
		if image.Status == domain.StatusError {
			count++
		}
	}
	return count, nil
}

// fakeResolver claims every URL and resolves to the source URL unchanged.
type fakeResolver struct {
	id   domain.HostID
	name string
}

func (r fakeResolver) HostName() string      { return r.name }
func (r fakeResolver) HostID() domain.HostID { return r.id }
func (r fakeResolver) IsSupported(url string) bool {
	return true
}
func (r fakeResolver) Resolve(ctx context.Context, image domain.ImageRecord) (ports.ResolvedImage, error) {
	return ports.ResolvedImage{URL: image.URL, Name: "photo.jpg"}, nil
}

type fakeRegistry struct {
	resolvers []ports.Resolver
}

func (r fakeRegistry) ResolverFor(url string) (ports.Resolver, bool) {
	for _, resolver := range r.resolvers {
		if resolver.IsSupported(url) {
			return resolver, true
		}
	}
	return nil, false
}

func (r fakeRegistry) HostIDs() []domain.HostID {
	ids := make([]domain.HostID, 0, len(r.resolvers))
	for _, resolver := range r.resolvers {
		ids = append(ids, resolver.HostID())
	}
	return ids
}

func (r fakeRegistry) HostName(id domain.HostID) string {
	for _, resolver := range r.resolvers {
		if resolver.HostID() == id {
			return resolver.HostName()
		}
	}
	return ""
}

// fakeFetcher delegates to fn, or simulates a full successful download when
// fn is nil.
type fakeFetcher struct {
	fs afero.Fs
	fn func(ctx context.Context, url string, opts ports.FetchOptions) (ports.FetchResult, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, opts ports.FetchOptions) (ports.FetchResult, error) {
	if f.fn != nil {
		return f.fn(ctx, url, opts)
	}
	return writeFetched(f.fs, opts, []byte("abc"), "image/jpeg")
}

// writeFetched materializes body as a temp file the way the real fetcher
// does, reporting progress and a matching content length.
func writeFetched(fs afero.Fs, opts ports.FetchOptions, body []byte, mimeType string) (ports.FetchResult, error) {
	tmp, err := afero.TempFile(fs, "", "fetched_*.tmp")
	if err != nil {
		return ports.FetchResult{}, err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return ports.FetchResult{}, err
	}
	if err := tmp.Close(); err != nil {
		return ports.FetchResult{}, err
	}
	if opts.Progress != nil {
		opts.Progress(int64(len(body)))
	}
	return ports.FetchResult{TempPath: tmp.Name(), MimeType: mimeType, Size: int64(len(body))}, nil
}

// fakeSink records published events.
type fakeSink struct {
	mu     sync.Mutex
	events []any
}

func (s *fakeSink) Publish(event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeSink) all() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.events...)
}

// staticSettings returns a fixed settings value.
type staticSettings struct {
	value domain.Settings
}

func (s staticSettings) Settings() domain.Settings { return s.value }
