package processor

import (
	"context"

	"github.com/pauljones0/dealiem-scraper/internal/models"
	"github.com/pauljones0/dealiem-scraper/internal/publisher"
)

// Session is one browser-backed scraping session. The processor closes it
// when the run ends.
type Session interface {
	DiscoverBusinessURLs(ctx context.Context) ([]string, error)
	Extract(ctx context.Context, businessURL string) (*models.ExtractionResult, error)
	Close() error
}

// SessionOpener starts a new scraping session for one run.
type SessionOpener func(ctx context.Context) (Session, error)

// DealPublisher abstracts the idempotent write path.
type DealPublisher interface {
	Recorded(ctx context.Context, businessURL string) (bool, error)
	Publish(ctx context.Context, doc models.WeeklyDealDocument, businessURL string) (publisher.Outcome, error)
}

// DealNotifier abstracts the notification layer.
type DealNotifier interface {
	Announce(ctx context.Context, doc models.WeeklyDealDocument) error
}
