// Package postgres provides the PostgreSQL implementation of the coupons
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bissquit/promo-garden/internal/coupons"
	"github.com/bissquit/promo-garden/internal/domain"
)

// Repository implements the coupons.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const couponColumns = `id, coupon_code, product_id, discount_percentage, discount_amount,
	category, created_at, expires_at, is_active, usage_count, max_usage`

func (r *Repository) Create(ctx context.Context, coupon *domain.Coupon) error {
	query := `
		INSERT INTO coupons (coupon_code, product_id, discount_percentage, discount_amount,
			category, expires_at, is_active, max_usage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		coupon.CouponCode,
		coupon.ProductID,
		coupon.DiscountPercentage,
		coupon.DiscountAmount,
		coupon.Category,
		coupon.ExpiresAt,
		coupon.IsActive,
		coupon.MaxUsage,
	).Scan(&coupon.ID, &coupon.CreatedAt)

	if err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

func (r *Repository) GetByProductID(ctx context.Context, productID string) (*domain.Coupon, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM coupons
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, couponColumns)
	return r.getOne(ctx, query, productID)
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE coupon_code = $1`, couponColumns)
	return r.getOne(ctx, query, code)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*domain.Coupon, error) {
	var c domain.Coupon
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&c.ID,
		&c.CouponCode,
		&c.ProductID,
		&c.DiscountPercentage,
		&c.DiscountAmount,
		&c.Category,
		&c.CreatedAt,
		&c.ExpiresAt,
		&c.IsActive,
		&c.UsageCount,
		&c.MaxUsage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupons.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return &c, nil
}

func (r *Repository) ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT coupon_code FROM coupons WHERE coupon_code LIKE $1 || '%'`

	rows, err := r.db.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("list coupon codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan coupon code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupon codes: %w", err)
	}
	return codes, nil
}

func (r *Repository) IncrementUsage(ctx context.Context, code string) error {
	query := `UPDATE coupons SET usage_count = usage_count + 1 WHERE coupon_code = $1`

	tag, err := r.db.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return coupons.ErrCouponNotFound
	}
	return nil
}
