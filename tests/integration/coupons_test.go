//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/promo-garden/internal/coupons"
	couponspostgres "github.com/bissquit/promo-garden/internal/coupons/postgres"
	"github.com/bissquit/promo-garden/internal/domain"
)

func newCouponService() *coupons.Service {
	repo := couponspostgres.NewRepository(testDB)
	return coupons.NewService(repo, coupons.Config{
		DiscountPercentage: 10,
		Validity:           30 * 24 * time.Hour,
	})
}

func TestCouponService_SequencePerCategory(t *testing.T) {
	truncate(t, "coupons")
	ctx := context.Background()
	svc := newCouponService()

	first, err := svc.GetOrCreate(ctx, "MLB1", "Celulares", 0)
	require.NoError(t, err)
	assert.Equal(t, "CEL_01", first.CouponCode)

	// Same product reuses the existing coupon.
	again, err := svc.GetOrCreate(ctx, "MLB1", "Celulares", 0)
	require.NoError(t, err)
	assert.Equal(t, first.CouponCode, again.CouponCode)

	second, err := svc.GetOrCreate(ctx, "MLB2", "Celulares", 0)
	require.NoError(t, err)
	assert.Equal(t, "CEL_02", second.CouponCode)

	games, err := svc.GetOrCreate(ctx, "MLB3", "Games", 0)
	require.NoError(t, err)
	assert.Equal(t, "GAME_01", games.CouponCode)

	other, err := svc.GetOrCreate(ctx, "MLB4", "Livros", 0)
	require.NoError(t, err)
	assert.Equal(t, "PROMO_01", other.CouponCode)
}

func TestCouponRepository_NoExpiry(t *testing.T) {
	truncate(t, "coupons")
	ctx := context.Background()
	repo := couponspostgres.NewRepository(testDB)

	coupon := &domain.Coupon{
		CouponCode:         "EVER_01",
		ProductID:          "MLB20",
		DiscountPercentage: 10,
		Category:           "Games",
		IsActive:           true,
	}
	require.NoError(t, repo.Create(ctx, coupon))

	got, err := repo.GetByCode(ctx, "EVER_01")
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresAt)
	assert.True(t, got.Usable(time.Now().Add(10*365*24*time.Hour)))
}

func TestCouponService_Redeem(t *testing.T) {
	truncate(t, "coupons")
	ctx := context.Background()
	svc := newCouponService()

	created, err := svc.GetOrCreate(ctx, "MLB10", "Games", 0)
	require.NoError(t, err)

	redeemed, err := svc.Redeem(ctx, created.CouponCode)
	require.NoError(t, err)
	assert.Equal(t, created.CouponCode, redeemed.CouponCode)

	refetched, err := svc.GetOrCreate(ctx, "MLB10", "Games", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, refetched.UsageCount)

	_, err = svc.Redeem(ctx, "NOPE_99")
	require.ErrorIs(t, err, coupons.ErrCouponNotFound)
}
