package download

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(store *fakeStore) (Config, *fakeSink, afero.Fs) {
	fs := afero.NewMemMapFs()
	sink := &fakeSink{}
	cfg := Config{
		Store:    store,
		Registry: fakeRegistry{resolvers: []ports.Resolver{fakeResolver{id: 1, name: "one"}}},
		Fetcher:  &fakeFetcher{fs: fs},
		Events:   sink,
		Settings: staticSettings{value: domain.DefaultSettings()},
		FS:       fs,
		Logger:   testLogger(),
	}
	return cfg, sink, fs
}

func seedPost(store *fakeStore, postID string, total int) {
	store.putPost(domain.PostRecord{
		ID:                postID,
		Total:             total,
		DownloadDirectory: "/downloads",
		FolderName:        "gallery",
		Status:            domain.StatusPending,
		Size:              domain.SizeUnknown,
		AddedAt:           time.Now().UTC(),
	})
}

func seedImage(store *fakeStore, imageID, postID string, index int) domain.ImageRecord {
	image := domain.ImageRecord{
		ID:           imageID,
		PostRecordID: postID,
		URL:          "https://pics.example/" + imageID + ".jpg",
		Host:         1,
		Index:        index,
		Size:         domain.SizeUnknown,
		Status:       domain.StatusPending,
	}
	store.putImage(image)
	return image
}

func TestImageDownloadSuccess(t *testing.T) {
	store := newFakeStore()
	cfg, _, fs := testConfig(store)
	seedPost(store, "p1", 1)
	image := seedImage(store, "i1", "p1", 0)

	task := newImageDownload(cfg, image, domain.DefaultSettings(), &keyedMutex{})
	if err := task.run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := store.image("i1")
	if got.Status != domain.StatusFinished {
		t.Fatalf("image status = %q, want %q", got.Status, domain.StatusFinished)
	}
	if got.Filename != "photo.JPG" {
		t.Errorf("filename = %q, want %q", got.Filename, "photo.JPG")
	}
	if got.Downloaded != 3 || got.Size != 3 {
		t.Errorf("downloaded/size = %d/%d, want 3/3", got.Downloaded, got.Size)
	}

	post := store.post("p1")
	if post.Done != 1 {
		t.Errorf("post done = %d, want 1", post.Done)
	}
	if post.Size != 3 || post.Downloaded != 3 {
		t.Errorf("post size/downloaded = %d/%d, want 3/3", post.Size, post.Downloaded)
	}
	if post.Status != domain.StatusDownloading {
		t.Errorf("post status = %q, want %q (reconciliation settles it later)", post.Status, domain.StatusDownloading)
	}

	exists, err := afero.Exists(fs, "/downloads/gallery/photo.JPG")
	if err != nil || !exists {
		t.Errorf("final file missing (exists=%v, err=%v)", exists, err)
	}
}

func TestImageDownloadTruncatedBodyIsTerminalError(t *testing.T) {
	store := newFakeStore()
	cfg, _, fs := testConfig(store)
	seedPost(store, "p1", 1)
	image := seedImage(store, "i1", "p1", 0)

	// Body is shorter than the declared content length.
	cfg.Fetcher = &fakeFetcher{fs: fs, fn: func(ctx context.Context, url string, opts ports.FetchOptions) (ports.FetchResult, error) {
		result, err := writeFetched(fs, opts, []byte("ab"), "image/jpeg")
		result.Size = 10
		return result, err
	}}

	task := newImageDownload(cfg, image, domain.DefaultSettings(), &keyedMutex{})
	if err := task.run(); err != nil {
		t.Fatalf("run: a short body must settle as an image error, not retry: %v", err)
	}
	if got := store.image("i1"); got.Status != domain.StatusError {
		t.Fatalf("image status = %q, want %q", got.Status, domain.StatusError)
	}
}

func TestImageDownloadUnsupportedMimeType(t *testing.T) {
	store := newFakeStore()
	cfg, _, fs := testConfig(store)
	seedPost(store, "p1", 1)
	image := seedImage(store, "i1", "p1", 0)

	cfg.Fetcher = &fakeFetcher{fs: fs, fn: func(ctx context.Context, url string, opts ports.FetchOptions) (ports.FetchResult, error) {
		return writeFetched(fs, opts, []byte("<html>"), "text/html")
	}}

	task := newImageDownload(cfg, image, domain.DefaultSettings(), &keyedMutex{})
	if err := task.run(); err == nil {
		t.Fatal("run: want error for unsupported content type")
	}
	if got := store.image("i1"); got.Status != domain.StatusError {
		t.Fatalf("image status = %q, want %q", got.Status, domain.StatusError)
	}
}

func TestImageDownloadStopSuppressesError(t *testing.T) {
	store := newFakeStore()
	cfg, _, fs := testConfig(store)
	seedPost(store, "p1", 1)
	image := seedImage(store, "i1", "p1", 0)

	cfg.Fetcher = &fakeFetcher{fs: fs, fn: func(ctx context.Context, url string, opts ports.FetchOptions) (ports.FetchResult, error) {
		return ports.FetchResult{}, errors.New("connection reset")
	}}

	task := newImageDownload(cfg, image, domain.DefaultSettings(), &keyedMutex{})
	task.stop()
	if err := task.run(); err != nil {
		t.Fatalf("run after stop: %v, want nil", err)
	}
	if got := store.image("i1"); got.Status == domain.StatusError {
		t.Fatalf("stopped image must not be marked error, got %q", got.Status)
	}
}

func TestImageDownloadForceOrderFilename(t *testing.T) {
	store := newFakeStore()
	cfg, _, fs := testConfig(store)
	seedPost(store, "p1", 5)
	image := seedImage(store, "i5", "p1", 4)

	settings := domain.DefaultSettings()
	settings.ForceOrder = true

	task := newImageDownload(cfg, image, settings, &keyedMutex{})
	if err := task.run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := store.image("i5"); got.Filename != "005_photo.JPG" {
		t.Fatalf("filename = %q, want %q", got.Filename, "005_photo.JPG")
	}
	exists, _ := afero.Exists(fs, "/downloads/gallery/005_photo.JPG")
	if !exists {
		t.Error("ordered file missing")
	}
}

type countingNotifier struct {
	calls atomic.Int32
}

func (n *countingNotifier) NotifyStarted(post domain.PostRecord) {
	n.calls.Add(1)
}

func TestImageDownloadNotifiesSourceOncePerPost(t *testing.T) {
	store := newFakeStore()
	cfg, _, _ := testConfig(store)
	notifier := &countingNotifier{}
	cfg.Notifier = notifier
	seedPost(store, "p1", 2)
	first := seedImage(store, "i1", "p1", 0)
	second := seedImage(store, "i2", "p1", 1)

	locks := &keyedMutex{}
	if err := newImageDownload(cfg, first, domain.DefaultSettings(), locks).run(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := newImageDownload(cfg, second, domain.DefaultSettings(), locks).run(); err != nil {
		t.Fatalf("second run: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for notifier.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("acknowledgement never dispatched")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	time.Sleep(50 * time.Millisecond)
	if got := notifier.calls.Load(); got != 1 {
		t.Fatalf("acknowledgements = %d, want 1", got)
	}
}

// flakyFs fails Rename and Create while failures is positive, then
// behaves normally. It models a filesystem that recovers between
// attempts.
type flakyFs struct {
	afero.Fs
	failures atomic.Int32
}

func (f *flakyFs) Rename(oldname, newname string) error {
	if f.failures.Add(-1) >= 0 {
		return errors.New("rename: device busy")
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *flakyFs) Create(name string) (afero.File, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("create: device busy")
	}
	return f.Fs.Create(name)
}

func TestImageDownloadRetryAfterMoveFailureKeepsPostSize(t *testing.T) {
	store := newFakeStore()
	cfg, _, fs := testConfig(store)
	seedPost(store, "p1", 1)
	image := seedImage(store, "i1", "p1", 0)

	// Fail the first attempt after the body is fetched: the rename and
	// its copy fallback both break, so the post totals are never
	// persisted for that attempt.
	flaky := &flakyFs{Fs: fs}
	flaky.failures.Store(2)
	cfg.FS = flaky

	task := newImageDownload(cfg, image, domain.DefaultSettings(), &keyedMutex{})
	if err := task.run(); err == nil {
		t.Fatal("first run: want move error")
	}
	if err := task.run(); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if got := store.image("i1"); got.Status != domain.StatusFinished {
		t.Fatalf("image status = %q, want %q", got.Status, domain.StatusFinished)
	}
	post := store.post("p1")
	if post.Size != 3 || post.Downloaded != 3 {
		t.Fatalf("post size/downloaded = %d/%d, want 3/3", post.Size, post.Downloaded)
	}
	if post.Done != 1 {
		t.Fatalf("post done = %d, want 1", post.Done)
	}
}

func TestImageDownloadResetsCountersPerAttempt(t *testing.T) {
	store := newFakeStore()
	cfg, _, fs := testConfig(store)
	seedPost(store, "p1", 1)
	image := seedImage(store, "i1", "p1", 0)
	image.Downloaded = 99
	image.Status = domain.StatusError
	store.putImage(image)

	cfg.Fetcher = &fakeFetcher{fs: fs, fn: func(ctx context.Context, url string, opts ports.FetchOptions) (ports.FetchResult, error) {
		// Observe the persisted state mid-attempt.
		mid := store.image("i1")
		if mid.Status != domain.StatusDownloading {
			t.Errorf("mid-attempt status = %q, want %q", mid.Status, domain.StatusDownloading)
		}
		if mid.Downloaded != 0 {
			t.Errorf("mid-attempt downloaded = %d, want 0", mid.Downloaded)
		}
		return writeFetched(fs, opts, []byte("abc"), "image/jpeg")
	}}

	task := newImageDownload(cfg, image, domain.DefaultSettings(), &keyedMutex{})
	if err := task.run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := store.image("i1"); got.Status != domain.StatusFinished {
		t.Fatalf("image status = %q, want %q", got.Status, domain.StatusFinished)
	}
}
