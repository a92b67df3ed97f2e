package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/promo-garden/internal/fetch"
	"github.com/bissquit/promo-garden/internal/marketplace"
	"github.com/bissquit/promo-garden/internal/scrape"
)

// Config tunes a pipeline run.
type Config struct {
	// MonitorURLs are the listing pages scanned every run.
	MonitorURLs []string `koanf:"monitor_urls"`
	// InterDealDelay paces announcements so chats are not flooded.
	InterDealDelay time.Duration `koanf:"inter_deal_delay"`
	// MaxDealsPerRun caps announcements in one run. Zero means no cap.
	MaxDealsPerRun int `koanf:"max_deals_per_run"`
	// SynthesizeOldPrice is passed through to the extractors.
	SynthesizeOldPrice float64 `koanf:"synthesize_old_price"`
}

// Report summarizes one pipeline run.
type Report struct {
	URLsScanned int
	Candidates  int
	Sent        int
	Duplicates  int
	Errors      int
}

// Runner executes full pipeline runs over the configured listing URLs.
type Runner struct {
	cfg       Config
	fetcher   fetch.Fetcher
	processor *Processor
}

func NewRunner(cfg Config, fetcher fetch.Fetcher, processor *Processor) *Runner {
	return &Runner{cfg: cfg, fetcher: fetcher, processor: processor}
}

// Run scans every monitored URL with one shared fetch session. A URL
// that fails to fetch or parse is logged and skipped; the run only
// errors when no session could be opened at all.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	session, err := r.fetcher.NewSession(ctx)
	if err != nil {
		recordRun("error", time.Since(start))
		return nil, fmt.Errorf("open fetch session: %w", err)
	}
	defer session.Close()

	report := &Report{}
	for _, url := range r.cfg.MonitorURLs {
		if ctx.Err() != nil {
			break
		}
		if r.cfg.MaxDealsPerRun > 0 && report.Sent >= r.cfg.MaxDealsPerRun {
			slog.Info("deal cap reached, stopping run early", "sent", report.Sent)
			break
		}
		r.scanURL(ctx, session, url, report)
	}

	recordRun("success", time.Since(start))
	slog.Info("pipeline run finished",
		"urls", report.URLsScanned,
		"candidates", report.Candidates,
		"sent", report.Sent,
		"duplicates", report.Duplicates,
		"errors", report.Errors,
		"duration", time.Since(start),
	)
	return report, nil
}

func (r *Runner) scanURL(ctx context.Context, session fetch.Session, url string, report *Report) {
	m, err := marketplace.Detect(url)
	if err != nil {
		slog.Warn("skipping unsupported monitor url", "url", url, "error", err)
		report.Errors++
		return
	}

	extractor, err := scrape.ForMarketplace(m, scrape.Config{SynthesizeOldPrice: r.cfg.SynthesizeOldPrice})
	if err != nil {
		slog.Warn("skipping marketplace without extractor", "marketplace", m, "url", url)
		report.Errors++
		return
	}

	html, err := session.Fetch(ctx, url)
	if err != nil {
		slog.Error("failed to fetch listing page", "url", url, "error", err)
		report.Errors++
		return
	}

	candidates, err := extractor.Extract(html, url)
	if err != nil {
		slog.Error("failed to extract candidates", "url", url, "error", err)
		report.Errors++
		return
	}

	report.URLsScanned++
	report.Candidates += len(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			return
		}
		if r.cfg.MaxDealsPerRun > 0 && report.Sent >= r.cfg.MaxDealsPerRun {
			return
		}

		outcome, err := r.processor.Process(ctx, m, c)
		if err != nil {
			slog.Error("candidate failed", "url", c.OriginalURL, "error", err)
		}

		switch outcome {
		case OutcomeSent:
			report.Sent++
			r.pause(ctx)
		case OutcomeDuplicate:
			report.Duplicates++
		case OutcomeError:
			report.Errors++
		}
	}
}

// pause waits the configured inter-deal delay, abandoning the wait on
// shutdown.
func (r *Runner) pause(ctx context.Context) {
	if r.cfg.InterDealDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(r.cfg.InterDealDelay):
	}
}
