// Package postgres provides the PostgreSQL implementation of the deals
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bissquit/promo-garden/internal/deals"
	"github.com/bissquit/promo-garden/internal/domain"
)

const uniqueViolation = "23505"

// Repository implements the deals.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) IsProcessed(ctx context.Context, externalID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM deals WHERE external_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check deal processed: %w", err)
	}
	return exists, nil
}

func (r *Repository) Save(ctx context.Context, deal *domain.Deal) error {
	query := `
		INSERT INTO deals (external_id, title, price, original_url, affiliate_url, image_url, category, store)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, sent_at
	`
	err := r.db.QueryRow(ctx, query,
		deal.ExternalID,
		deal.Title,
		deal.Price,
		deal.OriginalURL,
		deal.AffiliateURL,
		deal.ImageURL,
		deal.Category,
		deal.Store,
	).Scan(&deal.ID, &deal.SentAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return deals.ErrAlreadyProcessed
		}
		return fmt.Errorf("save deal: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, filter deals.Filter) ([]domain.Deal, error) {
	query := `
		SELECT id, external_id, title, price, original_url, affiliate_url, image_url, category, store, sent_at
		FROM deals
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR store = $2)
		ORDER BY sent_at DESC
		LIMIT $3 OFFSET $4
	`
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, query, filter.Category, filter.Store, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	var result []domain.Deal
	for rows.Next() {
		var d domain.Deal
		if err := rows.Scan(
			&d.ID,
			&d.ExternalID,
			&d.Title,
			&d.Price,
			&d.OriginalURL,
			&d.AffiliateURL,
			&d.ImageURL,
			&d.Category,
			&d.Store,
			&d.SentAt,
		); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deals: %w", err)
	}
	return result, nil
}

func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT category FROM deals ORDER BY category`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *Repository) Stats(ctx context.Context) (*deals.Stats, error) {
	stats := &deals.Stats{
		ByCategory: make(map[string]int),
		ByStore:    make(map[string]int),
	}

	query := `
		SELECT count(*),
		       count(*) FILTER (WHERE sent_at > now() - interval '24 hours')
		FROM deals
	`
	if err := r.db.QueryRow(ctx, query).Scan(&stats.Total, &stats.Last24h); err != nil {
		return nil, fmt.Errorf("count deals: %w", err)
	}

	if err := r.countsInto(ctx, `SELECT category, count(*) FROM deals GROUP BY category`, stats.ByCategory); err != nil {
		return nil, err
	}
	if err := r.countsInto(ctx, `SELECT store, count(*) FROM deals GROUP BY store`, stats.ByStore); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *Repository) countsInto(ctx context.Context, query string, dest map[string]int) error {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("group deals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan deal count: %w", err)
		}
		dest[key] = n
	}
	return rows.Err()
}
