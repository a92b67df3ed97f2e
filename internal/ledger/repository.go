// Package ledger records queued product scrapes: each claimed job
// produces a ScrapeRun that ends success or error, a product upsert and
// an append-only version snapshot.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/bissquit/promo-garden/internal/domain"
)

var (
	// ErrNoJobs is returned when the queue is empty.
	ErrNoJobs = errors.New("no scrape jobs queued")
	// ErrLinkNotFound is returned when a job references a missing link.
	ErrLinkNotFound = errors.New("affiliate link not found")
)

// Link is a registered scrape target.
type Link struct {
	ID          string
	URL         string
	Marketplace string
	ProductID   *string
	CreatedAt   time.Time
}

// Job is one claimed queue entry.
type Job struct {
	ID              string
	AffiliateLinkID string
}

// RunFilter narrows ListRuns. Zero values mean no constraint.
type RunFilter struct {
	Status domain.RunStatus
	Limit  int
}

// Repository defines the interface for the scrape ledger storage.
type Repository interface {
	// CreateLink registers a scrape target, reusing an existing row for
	// the same URL.
	CreateLink(ctx context.Context, url, marketplace string) (*Link, error)
	// Enqueue adds a job for the link to the work queue.
	Enqueue(ctx context.Context, affiliateLinkID string) error
	// ClaimJob pops exactly one job, racing safely against competing
	// consumers. Returns ErrNoJobs when the queue is empty.
	ClaimJob(ctx context.Context) (*Job, error)
	GetLink(ctx context.Context, id string) (*Link, error)

	CreateRun(ctx context.Context, run *domain.ScrapeRun) error
	// FinishRun moves a run to a terminal status with an optional error
	// message.
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, errMsg string) error
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.ScrapeRun, error)
	// SweepOrphanRuns fails runs stuck in running longer than maxAge and
	// returns how many were swept.
	SweepOrphanRuns(ctx context.Context, maxAge time.Duration) (int, error)

	// UpsertProduct inserts or refreshes a product keyed by
	// (marketplace, canonical id), filling in its ID.
	UpsertProduct(ctx context.Context, product *domain.Product) error
	AppendVersion(ctx context.Context, version *domain.ProductVersion) error
	SetLinkProduct(ctx context.Context, linkID, productID string) error
}
