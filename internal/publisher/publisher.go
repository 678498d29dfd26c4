// Package publisher writes weekly deal documents to the store exactly once
// per business.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pauljones0/dealiem-scraper/internal/models"
)

// DefaultMarker precedes the business identifier in business page paths.
const DefaultMarker = "/business/"

// DocumentStore abstracts the document collection the publisher writes to.
type DocumentStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (*models.WeeklyDealDocument, error)
	// Create writes doc under key, failing with models.ErrDocumentExists if
	// the key is already taken.
	Create(ctx context.Context, key string, doc models.WeeklyDealDocument) error
}

// DocumentValidator rejects documents that break the storage contract.
type DocumentValidator interface {
	ValidateDocument(doc models.WeeklyDealDocument) error
}

type Outcome int

const (
	Written Outcome = iota
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// DeriveKey returns the document key of a business URL: the path segment
// right after marker. "https://dealiem.com/business/joes-tacos/" gives
// "joes-tacos". It fails with models.ErrMalformedURL when there is none.
func DeriveKey(businessURL, marker string) (string, error) {
	parsed, err := url.Parse(businessURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", models.ErrMalformedURL, businessURL, err)
	}
	_, rest, found := strings.Cut(parsed.Path, marker)
	if !found {
		return "", fmt.Errorf("%w: %q has no %q segment", models.ErrMalformedURL, businessURL, marker)
	}
	key, _, _ := strings.Cut(strings.TrimLeft(rest, "/"), "/")
	// Firestore reserves "." and ".." as document IDs.
	if key == "" || key == "." || key == ".." {
		return "", fmt.Errorf("%w: %q has an empty business identifier", models.ErrMalformedURL, businessURL)
	}
	return key, nil
}

type Publisher struct {
	store     DocumentStore
	validator DocumentValidator
	marker    string
}

func New(store DocumentStore, v DocumentValidator, marker string) *Publisher {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Publisher{store: store, validator: v, marker: marker}
}

// Key derives the document key of businessURL.
func (p *Publisher) Key(businessURL string) (string, error) {
	return DeriveKey(businessURL, p.marker)
}

// Recorded reports whether a document for businessURL is already stored.
func (p *Publisher) Recorded(ctx context.Context, businessURL string) (bool, error) {
	key, err := p.Key(businessURL)
	if err != nil {
		return false, err
	}
	exists, err := p.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check document %s: %w", key, err)
	}
	return exists, nil
}

// Lookup returns the stored document for key, or nil if there is none.
func (p *Publisher) Lookup(ctx context.Context, key string) (*models.WeeklyDealDocument, error) {
	return p.store.Get(ctx, key)
}

// Publish stores doc under the key derived from businessURL unless a document
// is already there. An existing document is never modified.
func (p *Publisher) Publish(ctx context.Context, doc models.WeeklyDealDocument, businessURL string) (Outcome, error) {
	key, err := p.Key(businessURL)
	if err != nil {
		return Skipped, err
	}

	exists, err := p.store.Exists(ctx, key)
	if err != nil {
		return Skipped, fmt.Errorf("failed to check document %s: %w", key, err)
	}
	if exists {
		slog.Info("Business already recorded, skipping", "key", key, "url", businessURL)
		return Skipped, nil
	}

	if p.validator != nil {
		if err := p.validator.ValidateDocument(doc); err != nil {
			return Skipped, fmt.Errorf("document %s: %w", key, err)
		}
	}

	if err := p.store.Create(ctx, key, doc); err != nil {
		if errors.Is(err, models.ErrDocumentExists) {
			// Another writer got there between the check and the write.
			slog.Warn("Business recorded concurrently, skipping", "key", key, "url", businessURL)
			return Skipped, nil
		}
		return Skipped, fmt.Errorf("failed to write document %s: %w", key, err)
	}

	slog.Info("Published weekly deals", "key", key, "business", doc.Name)
	return Written, nil
}
