package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"galleryrip/internal/domain"
)

const downloadSettingsID = "download"

// DownloadSettingsRepository keeps the single mutable settings document.
type DownloadSettingsRepository struct {
	col *mongo.Collection
}

type settingsDoc struct {
	ID                    string `bson:"_id"`
	MaxConcurrentPerHost  int    `bson:"maxConcurrentPerHost"`
	MaxGlobalConcurrent   int    `bson:"maxGlobalConcurrent"`
	ConnectionTimeoutSecs int64  `bson:"connectionTimeoutSecs"`
	MaxAttempts           int    `bson:"maxAttempts"`
	ForceOrder            bool   `bson:"forceOrder"`
	ClearCompleted        bool   `bson:"clearCompleted"`
}

func NewDownloadSettingsRepository(client *mongo.Client, dbName string) *DownloadSettingsRepository {
	return &DownloadSettingsRepository{col: client.Database(dbName).Collection("settings")}
}

// Get returns the stored settings and whether a document existed.
func (r *DownloadSettingsRepository) Get(ctx context.Context) (domain.Settings, bool, error) {
	var doc settingsDoc
	err := r.col.FindOne(ctx, bson.M{"_id": downloadSettingsID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Settings{}, false, nil
		}
		return domain.Settings{}, false, err
	}
	settings := domain.Settings{
		MaxConcurrentPerHost: doc.MaxConcurrentPerHost,
		MaxGlobalConcurrent:  doc.MaxGlobalConcurrent,
		ConnectionTimeout:    time.Duration(doc.ConnectionTimeoutSecs) * time.Second,
		MaxAttempts:          doc.MaxAttempts,
		ForceOrder:           doc.ForceOrder,
		ClearCompleted:       doc.ClearCompleted,
	}
	return settings, true, nil
}

func (r *DownloadSettingsRepository) Set(ctx context.Context, settings domain.Settings) error {
	doc := settingsDoc{
		ID:                    downloadSettingsID,
		MaxConcurrentPerHost:  settings.MaxConcurrentPerHost,
		MaxGlobalConcurrent:   settings.MaxGlobalConcurrent,
		ConnectionTimeoutSecs: int64(settings.ConnectionTimeout / time.Second),
		MaxAttempts:           settings.MaxAttempts,
		ForceOrder:            settings.ForceOrder,
		ClearCompleted:        settings.ClearCompleted,
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": downloadSettingsID}, doc, options.Replace().SetUpsert(true))
	return err
}
