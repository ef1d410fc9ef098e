package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"galleryrip/internal/domain"
)

// Repository persists posts and images in two collections. Batch variants
// run in a transaction when the deployment supports one and fall back to
// sequential writes on standalone servers.
type Repository struct {
	client *mongo.Client
	posts  *mongo.Collection
	images *mongo.Collection
}

type postDoc struct {
	ID                string   `bson:"_id"`
	ThreadID          string   `bson:"threadId"`
	PostID            string   `bson:"postId"`
	Title             string   `bson:"title"`
	Forum             string   `bson:"forum"`
	URL               string   `bson:"url"`
	Token             string   `bson:"token"`
	Total             int      `bson:"total"`
	Hosts             []string `bson:"hosts"`
	DownloadDirectory string   `bson:"downloadDirectory"`
	FolderName        string   `bson:"folderName"`
	Status            string   `bson:"status"`
	Done              int      `bson:"done"`
	Size              int64    `bson:"size"`
	Downloaded        int64    `bson:"downloaded"`
	AddedAt           int64    `bson:"addedAt"`
}

type imageDoc struct {
	ID           string `bson:"_id"`
	PostRecordID string `bson:"postRecordId"`
	URL          string `bson:"url"`
	ThumbURL     string `bson:"thumbUrl"`
	Host         int32  `bson:"host"`
	Index        int    `bson:"index"`
	Size         int64  `bson:"size"`
	Downloaded   int64  `bson:"downloaded"`
	Status       string `bson:"status"`
	Filename     string `bson:"filename"`
}

func NewRepository(client *mongo.Client, dbName string) *Repository {
	db := client.Database(dbName)
	return &Repository{
		client: client,
		posts:  db.Collection("posts"),
		images: db.Collection("images"),
	}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.posts == nil {
		return nil
	}
	postModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "addedAt", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := r.posts.Indexes().CreateMany(ctx, postModels); err != nil {
		return err
	}
	imageModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "postRecordId", Value: 1}, {Key: "index", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	_, err := r.images.Indexes().CreateMany(ctx, imageModels)
	return err
}

func (r *Repository) CreatePostWithImages(ctx context.Context, post domain.PostRecord, images []domain.ImageRecord) error {
	insert := func(ctx context.Context) error {
		if _, err := r.posts.InsertOne(ctx, toPostDoc(post)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domain.ErrAlreadyExists
			}
			return err
		}
		if len(images) == 0 {
			return nil
		}
		docs := make([]any, 0, len(images))
		for _, image := range images {
			docs = append(docs, toImageDoc(image))
		}
		_, err := r.images.InsertMany(ctx, docs)
		return err
	}
	return r.inTransaction(ctx, insert)
}

func (r *Repository) GetPost(ctx context.Context, id string) (domain.PostRecord, error) {
	var doc postDoc
	if err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.PostRecord{}, domain.ErrNotFound
		}
		return domain.PostRecord{}, err
	}
	return fromPostDoc(doc), nil
}

func (r *Repository) ListPosts(ctx context.Context) ([]domain.PostRecord, error) {
	cursor, err := r.posts.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "addedAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []domain.PostRecord
	for cursor.Next(ctx) {
		var doc postDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		posts = append(posts, fromPostDoc(doc))
	}
	return posts, cursor.Err()
}

func (r *Repository) UpdatePost(ctx context.Context, post domain.PostRecord) error {
	doc := toPostDoc(post)
	res, err := r.posts.ReplaceOne(ctx, bson.M{"_id": post.ID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) UpdatePostsAndImages(ctx context.Context, posts []domain.PostRecord, images []domain.ImageRecord) error {
	if len(posts) == 0 && len(images) == 0 {
		return nil
	}
	update := func(ctx context.Context) error {
		if len(posts) > 0 {
			models := make([]mongo.WriteModel, 0, len(posts))
			for _, post := range posts {
				models = append(models, mongo.NewReplaceOneModel().
					SetFilter(bson.M{"_id": post.ID}).
					SetReplacement(toPostDoc(post)))
			}
			if _, err := r.posts.BulkWrite(ctx, models); err != nil {
				return err
			}
		}
		if len(images) > 0 {
			models := make([]mongo.WriteModel, 0, len(images))
			for _, image := range images {
				models = append(models, mongo.NewReplaceOneModel().
					SetFilter(bson.M{"_id": image.ID}).
					SetReplacement(toImageDoc(image)))
			}
			if _, err := r.images.BulkWrite(ctx, models); err != nil {
				return err
			}
		}
		return nil
	}
	return r.inTransaction(ctx, update)
}

func (r *Repository) DeletePosts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	remove := func(ctx context.Context) error {
		if _, err := r.images.DeleteMany(ctx, bson.M{"postRecordId": bson.M{"$in": ids}}); err != nil {
			return err
		}
		_, err := r.posts.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
		return err
	}
	return r.inTransaction(ctx, remove)
}

func (r *Repository) FindNonCompletedPostIDs(ctx context.Context) ([]string, error) {
	values, err := r.posts.Distinct(ctx, "_id", bson.M{"status": bson.M{"$ne": string(domain.StatusFinished)}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Repository) GetImage(ctx context.Context, id string) (domain.ImageRecord, error) {
	var doc imageDoc
	if err := r.images.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ImageRecord{}, domain.ErrNotFound
		}
		return domain.ImageRecord{}, err
	}
	return fromImageDoc(doc), nil
}

func (r *Repository) FindImagesByPost(ctx context.Context, postRecordID string) ([]domain.ImageRecord, error) {
	return r.findImages(ctx, bson.M{"postRecordId": postRecordID})
}

func (r *Repository) FindImagesByPostAndStatus(ctx context.Context, postRecordID string, status domain.Status) ([]domain.ImageRecord, error) {
	return r.findImages(ctx, bson.M{"postRecordId": postRecordID, "status": string(status)})
}

func (r *Repository) FindIncompleteImagesByPost(ctx context.Context, postRecordID string) ([]domain.ImageRecord, error) {
	return r.findImages(ctx, bson.M{
		"postRecordId": postRecordID,
		"status":       bson.M{"$ne": string(domain.StatusFinished)},
	})
}

func (r *Repository) findImages(ctx context.Context, filter bson.M) ([]domain.ImageRecord, error) {
	cursor, err := r.images.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "index", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var images []domain.ImageRecord
	for cursor.Next(ctx) {
		var doc imageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		images = append(images, fromImageDoc(doc))
	}
	return images, cursor.Err()
}

func (r *Repository) UpdateImage(ctx context.Context, image domain.ImageRecord) error {
	res, err := r.images.ReplaceOne(ctx, bson.M{"_id": image.ID}, toImageDoc(image))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateImageProgress(ctx context.Context, id string, downloaded, size int64) error {
	_, err := r.images.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"downloaded": downloaded,
		"size":       size,
	}})
	return err
}

func (r *Repository) StopIncompleteImagesByPost(ctx context.Context, postRecordID string) error {
	_, err := r.images.UpdateMany(ctx,
		bson.M{"postRecordId": postRecordID, "status": bson.M{"$ne": string(domain.StatusFinished)}},
		bson.M{"$set": bson.M{"status": string(domain.StatusStopped)}})
	return err
}

func (r *Repository) CountImagesInError(ctx context.Context) (int64, error) {
	return r.images.CountDocuments(ctx, bson.M{"status": string(domain.StatusError)})
}

// inTransaction runs fn in a multi-document transaction and degrades to a
// plain sequential run when the deployment does not support transactions
// (standalone mongod).
func (r *Repository) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && transactionsUnsupported(err) {
		return fn(ctx)
	}
	return err
}

func transactionsUnsupported(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Transaction numbers are only allowed") ||
		strings.Contains(msg, "transactions are not supported")
}

func toPostDoc(post domain.PostRecord) postDoc {
	return postDoc{
		ID:                post.ID,
		ThreadID:          post.ThreadID,
		PostID:            post.PostID,
		Title:             post.Title,
		Forum:             post.Forum,
		URL:               post.URL,
		Token:             post.Token,
		Total:             post.Total,
		Hosts:             post.Hosts,
		DownloadDirectory: post.DownloadDirectory,
		FolderName:        post.FolderName,
		Status:            string(post.Status),
		Done:              post.Done,
		Size:              post.Size,
		Downloaded:        post.Downloaded,
		AddedAt:           post.AddedAt.UTC().UnixMilli(),
	}
}

func fromPostDoc(doc postDoc) domain.PostRecord {
	return domain.PostRecord{
		ID:                doc.ID,
		ThreadID:          doc.ThreadID,
		PostID:            doc.PostID,
		Title:             doc.Title,
		Forum:             doc.Forum,
		URL:               doc.URL,
		Token:             doc.Token,
		Total:             doc.Total,
		Hosts:             doc.Hosts,
		DownloadDirectory: doc.DownloadDirectory,
		FolderName:        doc.FolderName,
		Status:            domain.Status(doc.Status),
		Done:              doc.Done,
		Size:              doc.Size,
		Downloaded:        doc.Downloaded,
		AddedAt:           time.UnixMilli(doc.AddedAt).UTC(),
	}
}

func toImageDoc(image domain.ImageRecord) imageDoc {
	return imageDoc{
		ID:           image.ID,
		PostRecordID: image.PostRecordID,
		URL:          image.URL,
		ThumbURL:     image.ThumbURL,
		Host:         int32(image.Host),
		Index:        image.Index,
		Size:         image.Size,
		Downloaded:   image.Downloaded,
		Status:       string(image.Status),
		Filename:     image.Filename,
	}
}

func fromImageDoc(doc imageDoc) domain.ImageRecord {
	return domain.ImageRecord{
		ID:           doc.ID,
		PostRecordID: doc.PostRecordID,
		URL:          doc.URL,
		ThumbURL:     doc.ThumbURL,
		Host:         domain.HostID(doc.Host),
		Index:        doc.Index,
		Size:         doc.Size,
		Downloaded:   doc.Downloaded,
		Status:       domain.Status(doc.Status),
		Filename:     doc.Filename,
	}
}
