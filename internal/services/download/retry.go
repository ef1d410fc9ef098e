package download

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	retryDelayMin = 2 * time.Second
	retryDelayMax = 5 * time.Second
)

// randomizedDelay waits a random duration between min and max before every
// retry. The window is flat, not exponential.
type randomizedDelay struct {
	min, max time.Duration
}

func (b *randomizedDelay) NextBackOff() time.Duration {
	return b.min + time.Duration(rand.Int63n(int64(b.max-b.min)))
}

func (b *randomizedDelay) Reset() {}

// runWithRetry executes the download with bounded retries. A stop request
// makes the current attempt return nil, ending the retry loop cleanly.
func runWithRetry(d *imageDownload, logger *slog.Logger) error {
	attempts := d.settings.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&randomizedDelay{min: retryDelayMin, max: retryDelayMax}, uint64(attempts-1)),
		d.ctx,
	)
	return backoff.RetryNotify(
		func() error {
			attempt++
			return d.run()
		},
		policy,
		func(err error, delay time.Duration) {
			logger.Warn("download attempt failed",
				slog.String("url", d.image.URL),
				slog.Int("attempt", attempt),
				slog.Int("maxAttempts", attempts),
				slog.Duration("retryIn", delay),
				slog.String("error", err.Error()))
		},
	)
}
