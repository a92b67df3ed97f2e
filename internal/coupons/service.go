// Package coupons issues per-category discount codes for deals.
package coupons

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bissquit/promo-garden/internal/domain"
	"github.com/bissquit/promo-garden/internal/scrape"
)

// ErrCouponNotFound is returned when no coupon matches a lookup.
var ErrCouponNotFound = errors.New("coupon not found")

const (
	defaultValidity = 30 * 24 * time.Hour
	fallbackPrefix  = "PROMO"
)

// Category prefixes map pipeline categories to human-readable code stems.
var prefixByCategory = map[string]string{
	scrape.CategoryPhones:      "CEL",
	scrape.CategoryElectronics: "ELET",
	scrape.CategoryComputing:   "INFO",
	scrape.CategoryGames:       "GAME",
	scrape.CategoryHome:        "CASA",
}

// Repository defines the interface for coupon persistence.
type Repository interface {
	Create(ctx context.Context, coupon *domain.Coupon) error
	GetByProductID(ctx context.Context, productID string) (*domain.Coupon, error)
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	// ListCodesByPrefix returns every coupon code starting with prefix.
	ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error)
	IncrementUsage(ctx context.Context, code string) error
}

// Config tunes coupon issuance.
type Config struct {
	DiscountPercentage float64       `koanf:"discount_percentage"`
	Validity           time.Duration `koanf:"validity"`
	MaxUsage           int           `koanf:"max_usage"`
}

// Service issues and resolves coupons.
type Service struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

func NewService(repo Repository, cfg Config) *Service {
	if cfg.Validity <= 0 {
		cfg.Validity = defaultValidity
	}
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// GetOrCreate returns the usable coupon already attached to productID, or
// mints a new sequential code for the category at discountPct percent off.
// A non-positive discountPct falls back to the configured default.
// Generation never fails the calling pipeline over a code collision: a
// salted fallback code is used instead.
func (s *Service) GetOrCreate(ctx context.Context, productID, category string, discountPct float64) (*domain.Coupon, error) {
	existing, err := s.repo.GetByProductID(ctx, productID)
	if err != nil && !errors.Is(err, ErrCouponNotFound) {
		return nil, fmt.Errorf("lookup coupon for product: %w", err)
	}
	if existing != nil && existing.Usable(s.now()) {
		return existing, nil
	}

	code := s.nextCode(ctx, category)

	// The sequence scan races with concurrent issuers. Re-check before
	// insert, then salt on collision.
	if taken, err := s.repo.GetByCode(ctx, code); err == nil && taken != nil {
		code = saltedCode(code)
	} else if err != nil && !errors.Is(err, ErrCouponNotFound) {
		return nil, fmt.Errorf("check coupon code: %w", err)
	}

	if discountPct <= 0 {
		discountPct = s.cfg.DiscountPercentage
	}
	expires := s.now().Add(s.cfg.Validity)
	coupon := &domain.Coupon{
		CouponCode:         code,
		ProductID:          productID,
		DiscountPercentage: discountPct,
		Category:           category,
		ExpiresAt:          &expires,
		IsActive:           true,
		MaxUsage:           s.cfg.MaxUsage,
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}

	slog.Info("coupon issued", "code", coupon.CouponCode, "category", category, "product_id", productID)
	return coupon, nil
}

// Redeem resolves a code and counts one usage.
func (s *Service) Redeem(ctx context.Context, code string) (*domain.Coupon, error) {
	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !coupon.Usable(s.now()) {
		return nil, ErrCouponNotFound
	}
	if err := s.repo.IncrementUsage(ctx, code); err != nil {
		return nil, fmt.Errorf("count coupon usage: %w", err)
	}
	coupon.UsageCount++
	return coupon, nil
}

// ApplyToLink appends the coupon code to an affiliate link as a query
// parameter. Unparseable links pass through unchanged.
func ApplyToLink(link string, coupon *domain.Coupon) string {
	if coupon == nil {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	q := u.Query()
	q.Set("coupon", coupon.CouponCode)
	u.RawQuery = q.Encode()
	return u.String()
}

// nextCode produces PREFIX_NN where NN continues the highest existing
// sequence for the prefix. Scan failures restart the sequence at 1
// rather than blocking issuance.
func (s *Service) nextCode(ctx context.Context, category string) string {
	prefix, ok := prefixByCategory[category]
	if !ok {
		prefix = fallbackPrefix
	}

	seq := 1
	codes, err := s.repo.ListCodesByPrefix(ctx, prefix+"_")
	if err != nil {
		slog.Warn("coupon sequence scan failed", "prefix", prefix, "error", err)
	} else {
		for _, code := range codes {
			rest, found := strings.CutPrefix(code, prefix+"_")
			if !found {
				continue
			}
			if n, err := strconv.Atoi(rest); err == nil && n >= seq {
				seq = n + 1
			}
		}
	}

	return fmt.Sprintf("%s_%02d", prefix, seq)
}

// saltedCode disambiguates a colliding code with a short random suffix.
func saltedCode(code string) string {
	salt := strings.ToUpper(uuid.NewString()[:4])
	return code + "_" + salt
}
