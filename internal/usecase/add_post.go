package usecase

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

var ErrInvalidPost = errors.New("invalid post")

// QueueAdmitter hands freshly created images to the download scheduler.
type QueueAdmitter interface {
	Enqueue(elements []domain.QueueElement)
}

type AddPost struct {
	Store       ports.DataStore
	Registry    ports.ResolverRegistry
	Events      ports.EventSink
	Queue       QueueAdmitter
	DownloadDir string
	Logger      *slog.Logger
	Now         func() time.Time
}

type AddPostItem struct {
	URL      string
	ThumbURL string
}

type AddPostInput struct {
	ThreadID string
	PostID   string
	Title    string
	Forum    string
	URL      string
	Token    string
	Items    []AddPostItem
}

// Execute registers a post and its images and enqueues every image that a
// resolver supports. Items no resolver claims are skipped with a warning so
// one exotic host does not sink the whole post.
func (uc AddPost) Execute(ctx context.Context, input AddPostInput) (domain.PostRecord, error) {
	if strings.TrimSpace(input.URL) == "" || len(input.Items) == 0 {
		return domain.PostRecord{}, ErrInvalidPost
	}

	now := time.Now
	if uc.Now != nil {
		now = uc.Now
	}
	logger := uc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	postID := uuid.NewString()

	images := make([]domain.ImageRecord, 0, len(input.Items))
	hostNames := make([]string, 0, 2)
	seenHosts := make(map[domain.HostID]bool)
	for i, item := range input.Items {
		resolver, ok := uc.Registry.ResolverFor(item.URL)
		if !ok {
			logger.Warn("no resolver for image, skipping",
				slog.String("url", item.URL),
				slog.String("post", input.PostID))
			continue
		}
		if !seenHosts[resolver.HostID()] {
			seenHosts[resolver.HostID()] = true
			hostNames = append(hostNames, resolver.HostName())
		}
		images = append(images, domain.ImageRecord{
			ID:           uuid.NewString(),
			PostRecordID: postID,
			URL:          item.URL,
			ThumbURL:     item.ThumbURL,
			Host:         resolver.HostID(),
			Index:        i,
			Size:         domain.SizeUnknown,
			Status:       domain.StatusPending,
		})
	}
	if len(images) == 0 {
		return domain.PostRecord{}, ErrNoImages
	}

	post := domain.PostRecord{
		ID:                postID,
		ThreadID:          input.ThreadID,
		PostID:            input.PostID,
		Title:             input.Title,
		Forum:             input.Forum,
		URL:               input.URL,
		Token:             input.Token,
		Total:             len(images),
		Hosts:             hostNames,
		DownloadDirectory: uc.DownloadDir,
		FolderName:        folderName(input.Title, input.PostID),
		Status:            domain.StatusPending,
		Size:              domain.SizeUnknown,
		AddedAt:           now().UTC(),
	}
	if err := post.Validate(); err != nil {
		return domain.PostRecord{}, err
	}

	if err := uc.Store.CreatePostWithImages(ctx, post, images); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.PostRecord{}, err
		}
		return domain.PostRecord{}, wrapRepo(err)
	}

	if uc.Events != nil {
		uc.Events.Publish(domain.PostCreatedEvent{Post: post})
	}
	if uc.Queue != nil {
		elements := make([]domain.QueueElement, 0, len(images))
		for _, image := range images {
			elements = append(elements, domain.QueueElement{
				ImageID:      image.ID,
				PostRecordID: image.PostRecordID,
				Host:         image.Host,
			})
		}
		uc.Queue.Enqueue(elements)
	}
	return post, nil
}

func folderName(title, postID string) string {
	name := strings.TrimSpace(title)
	if name == "" {
		name = postID
	}
	name = sanitizePathComponent(name)
	if name == "" {
		name = postID
	}
	return name
}

func sanitizePathComponent(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	return strings.Trim(filepath.Clean(name), ". ")
}
