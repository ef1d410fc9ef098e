package ports

import (
	"context"

	"galleryrip/internal/domain"
)

// DataStore is the durable backing store for posts and images. Implementations
// must be safe for concurrent use from multiple download tasks.
type DataStore interface {
	CreatePostWithImages(ctx context.Context, post domain.PostRecord, images []domain.ImageRecord) error
	GetPost(ctx context.Context, id string) (domain.PostRecord, error)
	ListPosts(ctx context.Context) ([]domain.PostRecord, error)
	UpdatePost(ctx context.Context, post domain.PostRecord) error
	UpdatePostsAndImages(ctx context.Context, posts []domain.PostRecord, images []domain.ImageRecord) error
	DeletePosts(ctx context.Context, ids []string) error
	FindNonCompletedPostIDs(ctx context.Context) ([]string, error)

	GetImage(ctx context.Context, id string) (domain.ImageRecord, error)
	FindImagesByPost(ctx context.Context, postRecordID string) ([]domain.ImageRecord, error)
	FindImagesByPostAndStatus(ctx context.Context, postRecordID string, status domain.Status) ([]domain.ImageRecord, error)
	FindIncompleteImagesByPost(ctx context.Context, postRecordID string) ([]domain.ImageRecord, error)
	UpdateImage(ctx context.Context, image domain.ImageRecord) error
	// UpdateImageProgress persists downloaded/size counters only. It backs the
	// periodic progress ticker and is allowed to be lossy.
	UpdateImageProgress(ctx context.Context, id string, downloaded, size int64) error
	StopIncompleteImagesByPost(ctx context.Context, postRecordID string) error
	CountImagesInError(ctx context.Context) (int64, error)
}
