// Package forum talks back to the source forum. The only call today is the
// courtesy acknowledgement left on a post when its download starts.
package forum

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"galleryrip/internal/domain"
)

const notifyTimeout = 10 * time.Second

type Notifier struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewNotifier returns nil when baseURL is empty, which disables
// acknowledgements entirely.
func NewNotifier(client *http.Client, baseURL string, logger *slog.Logger) *Notifier {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, baseURL: baseURL, logger: logger}
}

// NotifyStarted leaves the acknowledgement on the source post. Fire and
// forget: every failure is logged and swallowed.
func (n *Notifier) NotifyStarted(post domain.PostRecord) {
	if n == nil || post.PostID == "" || post.Token == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("do", "post_thanks_add")
	form.Set("p", post.PostID)
	form.Set("securitytoken", post.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		n.baseURL+"/post_thanks.php", strings.NewReader(form.Encode()))
	if err != nil {
		n.logger.Warn("acknowledgement request build failed",
			slog.String("postId", post.PostID),
			slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("acknowledgement failed",
			slog.String("postId", post.PostID),
			slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		n.logger.Warn("acknowledgement rejected",
			slog.String("postId", post.PostID),
			slog.Int("status", resp.StatusCode))
		return
	}
	n.logger.Debug("acknowledgement sent", slog.String("postId", post.PostID))
}
