package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"galleryrip/internal/domain/ports"
)

const (
	readBufferSize = 8192
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

// Fetcher streams a resolved URL into a temporary file, classifying the
// response content type. Shared by every resolver; the optional limiter caps
// aggregate download bandwidth across all in-flight images.
type Fetcher struct {
	client  *http.Client
	fs      afero.Fs
	tempDir string
	limiter *rate.Limiter
	logger  *slog.Logger
}

type FetcherConfig struct {
	Client  *http.Client
	FS      afero.Fs
	TempDir string
	// BytesPerSecond caps download bandwidth; 0 means unlimited.
	BytesPerSecond int64
	Logger         *slog.Logger
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	fs := cfg.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.BytesPerSecond > 0 {
		burst := int(cfg.BytesPerSecond)
		if burst < readBufferSize {
			burst = readBufferSize
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.BytesPerSecond), burst)
	}
	return &Fetcher{
		client:  client,
		fs:      fs,
		tempDir: cfg.TempDir,
		limiter: limiter,
		logger:  logger,
	}
}

// Fetch downloads url into a temp file. The caller owns the returned temp
// file and must remove it.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts ports.FetchOptions) (ports.FetchResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.FetchResult{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return ports.FetchResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ports.FetchResult{}, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	tmp, err := afero.TempFile(f.fs, f.tempDir, "galleryrip_*.tmp")
	if err != nil {
		return ports.FetchResult{}, fmt.Errorf("create temp file: %w", err)
	}

	written, err := f.copyBody(ctx, tmp, resp.Body, opts.Progress)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = f.fs.Remove(tmp.Name())
		return ports.FetchResult{}, err
	}

	f.logger.Debug("fetch complete",
		slog.String("url", url),
		slog.Int64("bytes", written),
		slog.Int64("durationMs", time.Since(start).Milliseconds()))

	return ports.FetchResult{
		TempPath: tmp.Name(),
		MimeType: resp.Header.Get("Content-Type"),
		Size:     resp.ContentLength,
	}, nil
}

func (f *Fetcher) copyBody(ctx context.Context, dst io.Writer, src io.Reader, progress func(int64)) (int64, error) {
	buf := make([]byte, readBufferSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if f.limiter != nil {
				if err := f.limiter.WaitN(ctx, n); err != nil {
					return written, err
				}
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if progress != nil {
				progress(int64(n))
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
