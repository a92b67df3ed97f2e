package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/promo-garden/internal/domain"
	"github.com/bissquit/promo-garden/internal/fetch"
	"github.com/bissquit/promo-garden/internal/marketplace"
	"github.com/bissquit/promo-garden/internal/scrape"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	PollInterval  time.Duration `koanf:"poll_interval"`
	RunTimeout    time.Duration `koanf:"run_timeout"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	NumWorkers    int           `koanf:"num_workers"`
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:  5 * time.Second,
		RunTimeout:    15 * time.Minute,
		SweepInterval: time.Minute,
		NumWorkers:    2,
	}
}

// Worker consumes scrape jobs from the queue. Every claimed job becomes
// a ScrapeRun that ends in a terminal status; job failures are recorded
// and swallowed so consumption never stops.
type Worker struct {
	config  WorkerConfig
	repo    Repository
	fetcher fetch.Fetcher

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorker creates a new scrape worker.
func NewWorker(config WorkerConfig, repo Repository, fetcher fetch.Fetcher) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 15 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	return &Worker{
		config:  config,
		repo:    repo,
		fetcher: fetcher,
		stopCh:  make(chan struct{}),
	}
}

// Start launches worker and sweeper goroutines.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting scrape worker",
		"workers", w.config.NumWorkers,
		"poll_interval", w.config.PollInterval,
		"run_timeout", w.config.RunTimeout,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
	w.wg.Add(1)
	go w.sweep(ctx)
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	slog.Info("scrape worker stopped")
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.drain(ctx, workerID)
		}
	}
}

// drain claims jobs until the queue is empty, so a burst is consumed
// without waiting a poll interval per job.
func (w *Worker) drain(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		job, err := w.repo.ClaimJob(ctx)
		if err != nil {
			if !errors.Is(err, ErrNoJobs) {
				slog.Error("failed to claim scrape job", "worker", workerID, "error", err)
			}
			return
		}

		if err := w.processJob(ctx, job); err != nil {
			slog.Error("scrape job failed", "worker", workerID, "job_id", job.ID, "error", err)
		}
	}
}

// processJob takes one job through fetch, extraction and persistence.
// The returned error is for logging only; it is already recorded on the
// run.
func (w *Worker) processJob(ctx context.Context, job *Job) error {
	ctx, cancel := context.WithTimeout(ctx, w.config.RunTimeout)
	defer cancel()

	run := &domain.ScrapeRun{
		AffiliateLinkID: job.AffiliateLinkID,
		Status:          domain.RunStatusRunning,
	}
	if err := w.repo.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	err := w.scrapeLink(ctx, job.AffiliateLinkID)
	if err != nil {
		if finishErr := w.repo.FinishRun(ctx, run.ID, domain.RunStatusError, err.Error()); finishErr != nil {
			slog.Error("failed to record run error", "run_id", run.ID, "error", finishErr)
		}
		recordJob("error")
		return err
	}

	if err := w.repo.FinishRun(ctx, run.ID, domain.RunStatusSuccess, ""); err != nil {
		return fmt.Errorf("record run success: %w", err)
	}
	recordJob("success")
	return nil
}

func (w *Worker) scrapeLink(ctx context.Context, linkID string) error {
	link, err := w.repo.GetLink(ctx, linkID)
	if err != nil {
		return fmt.Errorf("resolve link: %w", err)
	}

	m, err := marketplace.Detect(link.URL)
	if err != nil {
		return fmt.Errorf("detect marketplace: %w", err)
	}

	extractor, err := scrape.ProductForMarketplace(m)
	if err != nil {
		return fmt.Errorf("select extractor: %w", err)
	}

	session, err := w.fetcher.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("open fetch session: %w", err)
	}
	defer session.Close()

	html, err := session.Fetch(ctx, link.URL)
	if err != nil {
		return fmt.Errorf("fetch product page: %w", err)
	}

	product, err := extractor.ExtractProduct(html, link.URL)
	if err != nil {
		return fmt.Errorf("extract product: %w", err)
	}
	product.URLAffiliate = link.URL

	if err := w.repo.UpsertProduct(ctx, product); err != nil {
		return err
	}

	snapshot, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("encode product snapshot: %w", err)
	}
	if err := w.repo.AppendVersion(ctx, &domain.ProductVersion{
		ProductID: product.ID,
		Snapshot:  snapshot,
	}); err != nil {
		return err
	}

	if err := w.repo.SetLinkProduct(ctx, link.ID, product.ID); err != nil {
		return err
	}

	slog.Info("product scraped",
		"product_id", product.ID,
		"marketplace", product.Marketplace,
		"canonical_id", product.CanonicalProductID,
	)
	return nil
}

func (w *Worker) sweep(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			swept, err := w.repo.SweepOrphanRuns(ctx, w.config.RunTimeout)
			if err != nil {
				slog.Error("orphan sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				slog.Warn("orphaned scrape runs failed", "count", swept)
			}
		}
	}
}
