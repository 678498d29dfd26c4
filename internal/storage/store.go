// Package storage implements the document stores the publisher writes to.
package storage

import (
	"context"
	"fmt"

	"github.com/pauljones0/dealiem-scraper/internal/config"
	"github.com/pauljones0/dealiem-scraper/internal/models"
)

// Store is a document collection keyed by business identifier.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (*models.WeeklyDealDocument, error)
	Create(ctx context.Context, key string, doc models.WeeklyDealDocument) error
	Close() error
}

// Open connects to the backend selected by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		return NewFirestore(ctx, cfg.ProjectID, cfg.Collection, cfg.CredentialsFile)
	case config.StoreMongo:
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.Collection)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
