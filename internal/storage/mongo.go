package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pauljones0/dealiem-scraper/internal/models"
)

// mongoDocument stores the business key as _id so the unique primary index
// enforces one document per business.
type mongoDocument struct {
	Key                       string `bson:"_id"`
	models.WeeklyDealDocument `bson:",inline"`
}

// Mongo is the MongoDB flavour of the document store.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	slog.Info("Connected to MongoDB", "database", database, "collection", collection)
	return &Mongo{client: cli, coll: cli.Database(database).Collection(collection)}, nil
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

func (m *Mongo) Exists(ctx context.Context, key string) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count document %s: %w", key, err)
	}
	return n > 0, nil
}

// Get retrieves a document by key. It returns nil, nil when there is none.
func (m *Mongo) Get(ctx context.Context, key string) (*models.WeeklyDealDocument, error) {
	var stored mongoDocument
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&stored)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	return &stored.WeeklyDealDocument, nil
}

func (m *Mongo) Create(ctx context.Context, key string, doc models.WeeklyDealDocument) error {
	_, err := m.coll.InsertOne(ctx, mongoDocument{Key: key, WeeklyDealDocument: doc})
	return mongoCreateError(key, err)
}

func mongoCreateError(key string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", key, models.ErrDocumentExists)
	}
	return fmt.Errorf("failed to insert document %s: %w", key, err)
}
