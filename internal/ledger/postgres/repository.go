// Package postgres provides the PostgreSQL implementation of the ledger
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bissquit/promo-garden/internal/domain"
	"github.com/bissquit/promo-garden/internal/ledger"
)

// Repository implements the ledger.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateLink(ctx context.Context, url, marketplace string) (*ledger.Link, error) {
	query := `
		INSERT INTO affiliate_links (url, marketplace)
		VALUES ($1, $2)
		ON CONFLICT (url) DO UPDATE SET marketplace = EXCLUDED.marketplace
		RETURNING id, url, marketplace, product_id, created_at
	`
	var link ledger.Link
	err := r.db.QueryRow(ctx, query, url, marketplace).Scan(
		&link.ID,
		&link.URL,
		&link.Marketplace,
		&link.ProductID,
		&link.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create affiliate link: %w", err)
	}
	return &link, nil
}

func (r *Repository) Enqueue(ctx context.Context, affiliateLinkID string) error {
	query := `INSERT INTO scrape_jobs (affiliate_link_id) VALUES ($1)`

	if _, err := r.db.Exec(ctx, query, affiliateLinkID); err != nil {
		return fmt.Errorf("enqueue scrape job: %w", err)
	}
	return nil
}

// ClaimJob pops the oldest job. SKIP LOCKED lets competing consumers
// claim disjoint jobs without blocking each other, and the DELETE makes
// the claim a one-shot.
func (r *Repository) ClaimJob(ctx context.Context) (*ledger.Job, error) {
	query := `
		DELETE FROM scrape_jobs
		WHERE id = (
			SELECT id FROM scrape_jobs
			ORDER BY enqueued_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, affiliate_link_id
	`
	var job ledger.Job
	err := r.db.QueryRow(ctx, query).Scan(&job.ID, &job.AffiliateLinkID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNoJobs
		}
		return nil, fmt.Errorf("claim scrape job: %w", err)
	}
	return &job, nil
}

func (r *Repository) GetLink(ctx context.Context, id string) (*ledger.Link, error) {
	query := `SELECT id, url, marketplace, product_id, created_at FROM affiliate_links WHERE id = $1`

	var link ledger.Link
	err := r.db.QueryRow(ctx, query, id).Scan(
		&link.ID,
		&link.URL,
		&link.Marketplace,
		&link.ProductID,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrLinkNotFound
		}
		return nil, fmt.Errorf("get affiliate link: %w", err)
	}
	return &link, nil
}

func (r *Repository) CreateRun(ctx context.Context, run *domain.ScrapeRun) error {
	query := `
		INSERT INTO scrape_runs (affiliate_link_id, status)
		VALUES ($1, $2)
		RETURNING id, started_at
	`
	err := r.db.QueryRow(ctx, query, run.AffiliateLinkID, run.Status).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return fmt.Errorf("create scrape run: %w", err)
	}
	return nil
}

func (r *Repository) FinishRun(ctx context.Context, runID string, status domain.RunStatus, errMsg string) error {
	query := `
		UPDATE scrape_runs
		SET status = $2, error = NULLIF($3, ''), finished_at = now()
		WHERE id = $1 AND status = 'running'
	`
	tag, err := r.db.Exec(ctx, query, runID, status, errMsg)
	if err != nil {
		return fmt.Errorf("finish scrape run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish scrape run %s: not running", runID)
	}
	return nil
}

func (r *Repository) ListRuns(ctx context.Context, filter ledger.RunFilter) ([]domain.ScrapeRun, error) {
	query := `
		SELECT id, affiliate_link_id, status, started_at, finished_at, coalesce(error, '')
		FROM scrape_runs
		WHERE ($1 = '' OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, query, string(filter.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list scrape runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.ScrapeRun
	for rows.Next() {
		var run domain.ScrapeRun
		if err := rows.Scan(
			&run.ID,
			&run.AffiliateLinkID,
			&run.Status,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Error,
		); err != nil {
			return nil, fmt.Errorf("scan scrape run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scrape runs: %w", err)
	}
	return runs, nil
}

func (r *Repository) SweepOrphanRuns(ctx context.Context, maxAge time.Duration) (int, error) {
	query := `
		UPDATE scrape_runs
		SET status = 'error', error = 'orphaned: worker never finished', finished_at = now()
		WHERE status = 'running' AND started_at < now() - $1::interval
	`
	tag, err := r.db.Exec(ctx, query, maxAge.String())
	if err != nil {
		return 0, fmt.Errorf("sweep orphan runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) UpsertProduct(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (
			marketplace, canonical_product_id, title, price_cents, currency,
			rating, review_count, seller_name, category, main_image_url,
			images, url_affiliate, url_canonical
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (marketplace, canonical_product_id) DO UPDATE SET
			title = EXCLUDED.title,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			seller_name = EXCLUDED.seller_name,
			category = EXCLUDED.category,
			main_image_url = EXCLUDED.main_image_url,
			images = EXCLUDED.images,
			url_affiliate = EXCLUDED.url_affiliate,
			url_canonical = EXCLUDED.url_canonical,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		product.Marketplace,
		product.CanonicalProductID,
		product.Title,
		product.PriceCents,
		product.Currency,
		product.Rating,
		product.ReviewCount,
		product.SellerName,
		product.Category,
		product.MainImageURL,
		product.Images,
		product.URLAffiliate,
		product.URLCanonical,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (r *Repository) AppendVersion(ctx context.Context, version *domain.ProductVersion) error {
	query := `
		INSERT INTO product_versions (product_id, snapshot)
		VALUES ($1, $2)
		RETURNING id, scraped_at
	`
	err := r.db.QueryRow(ctx, query, version.ProductID, version.Snapshot).Scan(&version.ID, &version.ScrapedAt)
	if err != nil {
		return fmt.Errorf("append product version: %w", err)
	}
	return nil
}

func (r *Repository) SetLinkProduct(ctx context.Context, linkID, productID string) error {
	query := `UPDATE affiliate_links SET product_id = $2 WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, linkID, productID); err != nil {
		return fmt.Errorf("bind link to product: %w", err)
	}
	return nil
}
