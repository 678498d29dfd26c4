package storage

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/dealiem-scraper/internal/models"
)

// Firestore keeps one document per business in a single collection.
type Firestore struct {
	client     *firestore.Client
	collection string
}

func NewFirestore(ctx context.Context, projectID, collection, credentialsFile string) (*Firestore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	slog.Info("Connected to Firestore", "project", projectID, "collection", collection)
	return &Firestore{client: client, collection: collection}, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) Exists(ctx context.Context, key string) (bool, error) {
	snap, err := f.client.Collection(f.collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	return snap.Exists(), nil
}

// Get retrieves a document by key. It returns nil, nil when there is none.
func (f *Firestore) Get(ctx context.Context, key string) (*models.WeeklyDealDocument, error) {
	snap, err := f.client.Collection(f.collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	if !snap.Exists() {
		return nil, nil
	}

	var doc models.WeeklyDealDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", key, err)
	}
	return &doc, nil
}

// Create writes doc under key. Firestore rejects the write server-side if the
// key is taken, so concurrent runs cannot overwrite each other.
func (f *Firestore) Create(ctx context.Context, key string, doc models.WeeklyDealDocument) error {
	_, err := f.client.Collection(f.collection).Doc(key).Create(ctx, doc)
	return firestoreCreateError(key, err)
}

func firestoreCreateError(key string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("%s: %w", key, models.ErrDocumentExists)
	}
	return fmt.Errorf("failed to create document %s: %w", key, err)
}
