// Package processor runs the scraping pipeline: discover businesses, extract
// their weekly schedules, and publish each new one.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pauljones0/dealiem-scraper/internal/config"
	"github.com/pauljones0/dealiem-scraper/internal/models"
	"github.com/pauljones0/dealiem-scraper/internal/publisher"
	"github.com/pauljones0/dealiem-scraper/internal/util"
	"github.com/pauljones0/dealiem-scraper/internal/weekly"
)

const defaultRetryBase = 2 * time.Second

// Summary counts what happened to each discovered business in one run.
type Summary struct {
	Discovered      int
	Written         int
	AlreadyRecorded int
	Skipped         int
	Failed          int
}

func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("discovered", s.Discovered),
		slog.Int("written", s.Written),
		slog.Int("already_recorded", s.AlreadyRecorded),
		slog.Int("skipped", s.Skipped),
		slog.Int("failed", s.Failed),
	)
}

type Processor interface {
	Run(ctx context.Context) (Summary, error)
}

type DealProcessor struct {
	open          SessionOpener
	publisher     DealPublisher
	notifier      DealNotifier
	retries       int
	retryBase     time.Duration
	businessDelay time.Duration
	skipRecorded  bool
}

func New(open SessionOpener, p DealPublisher, n DealNotifier, cfg *config.Config) *DealProcessor {
	return &DealProcessor{
		open:          open,
		publisher:     p,
		notifier:      n,
		retries:       cfg.DiscoveryRetries,
		retryBase:     defaultRetryBase,
		businessDelay: cfg.BusinessDelay,
		skipRecorded:  cfg.SkipRecorded,
	}
}

// Run performs one full pass over the directory. Businesses are handled one
// at a time; a failure on one is logged and counted, never fatal. Only a lost
// browser session, a cancelled context or a failed discovery end the run early.
func (p *DealProcessor) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	start := time.Now()

	session, err := p.open(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to open scraping session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("Failed to close scraping session", "error", err)
		}
	}()

	urls, err := p.discover(ctx, session)
	if err != nil {
		return summary, fmt.Errorf("failed to discover businesses: %w", err)
	}
	summary.Discovered = len(urls)
	slog.Info("Discovered businesses", "count", len(urls))

	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		slog.Info("Processing business", "url", url, "index", i+1, "total", len(urls))

		if err := p.processBusiness(ctx, session, url, &summary); err != nil {
			slog.Error("Aborting run", "url", url, "error", err)
			return summary, err
		}

		// Pause once a business is done, not between starts.
		if i < len(urls)-1 {
			if err := util.Sleep(ctx, p.businessDelay); err != nil {
				return summary, err
			}
		}
	}

	slog.Info("Finished processing", "summary", summary, "duration", time.Since(start))
	return summary, nil
}

func (p *DealProcessor) discover(ctx context.Context, session Session) ([]string, error) {
	var urls []string
	err := util.RetryWithBackoff(ctx, p.retries, p.retryBase, func(attempt int) error {
		found, err := session.DiscoverBusinessURLs(ctx)
		if err != nil {
			if errors.Is(err, models.ErrRendererUnavailable) || ctx.Err() != nil {
				return util.Permanent(err)
			}
			slog.Warn("Directory crawl failed", "attempt", attempt+1, "error", err)
			return err
		}
		urls = found
		return nil
	})
	return urls, err
}

// processBusiness handles one business and records its outcome in summary.
// It returns an error only when the whole run must stop.
func (p *DealProcessor) processBusiness(ctx context.Context, session Session, url string, summary *Summary) error {
	if p.skipRecorded {
		recorded, err := p.publisher.Recorded(ctx, url)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			slog.Warn("Could not check if business is recorded", "url", url, "error", err)
			summary.Failed++
			return nil
		case recorded:
			slog.Info("Business already recorded, not rendering", "url", url)
			summary.AlreadyRecorded++
			return nil
		}
	}

	result, err := session.Extract(ctx, url)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRendererUnavailable):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, models.ErrSkipped):
			slog.Info("Skipping business without schedule", "url", url, "reason", err)
			summary.Skipped++
		default:
			slog.Warn("Error processing business", "url", url, "error", err)
			summary.Failed++
		}
		return nil
	}

	for _, label := range weekly.UnmappedDays(result) {
		slog.Warn("Ignoring tab that is not a weekday", "business", result.Name, "url", url, "day", label)
	}
	doc := weekly.Build(result, url)

	outcome, err := p.publisher.Publish(ctx, doc, url)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("Failed to publish business", "business", doc.Name, "url", url, "error", err)
		summary.Failed++
		return nil
	}

	switch outcome {
	case publisher.Written:
		summary.Written++
		if p.notifier != nil {
			if err := p.notifier.Announce(ctx, doc); err != nil {
				slog.Warn("Discord announcement failed", "business", doc.Name, "error", err)
			}
		}
	case publisher.Skipped:
		summary.AlreadyRecorded++
	}
	return nil
}
