package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/promo-garden/internal/domain"
	"github.com/bissquit/promo-garden/internal/scrape"
)

type fakeRepo struct {
	byProduct map[string]*domain.Coupon
	byCode    map[string]*domain.Coupon
	created   []*domain.Coupon
	listErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byProduct: make(map[string]*domain.Coupon),
		byCode:    make(map[string]*domain.Coupon),
	}
}

func (f *fakeRepo) Create(_ context.Context, c *domain.Coupon) error {
	c.ID = int64(len(f.created) + 1)
	c.CreatedAt = time.Now()
	f.created = append(f.created, c)
	f.byProduct[c.ProductID] = c
	f.byCode[c.CouponCode] = c
	return nil
}

func (f *fakeRepo) GetByProductID(_ context.Context, productID string) (*domain.Coupon, error) {
	if c, ok := f.byProduct[productID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, ErrCouponNotFound
}

func (f *fakeRepo) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	if c, ok := f.byCode[code]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, ErrCouponNotFound
}

func (f *fakeRepo) ListCodesByPrefix(_ context.Context, prefix string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var codes []string
	for code := range f.byCode {
		if len(code) >= len(prefix) && code[:len(prefix)] == prefix {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

func (f *fakeRepo) IncrementUsage(_ context.Context, code string) error {
	c, ok := f.byCode[code]
	if !ok {
		return ErrCouponNotFound
	}
	c.UsageCount++
	return nil
}

func TestService_GetOrCreate_SequentialCodes(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, Config{DiscountPercentage: 10})

	ctx := context.Background()
	first, err := svc.GetOrCreate(ctx, "MLB1", scrape.CategoryPhones, 0)
	require.NoError(t, err)
	assert.Equal(t, "CEL_01", first.CouponCode)
	assert.True(t, first.IsActive)
	require.NotNil(t, first.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *first.ExpiresAt, time.Minute)

	second, err := svc.GetOrCreate(ctx, "MLB2", scrape.CategoryPhones, 0)
	require.NoError(t, err)
	assert.Equal(t, "CEL_02", second.CouponCode)
}

func TestService_GetOrCreate_DiscountPerCall(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, Config{DiscountPercentage: 10})

	ctx := context.Background()
	custom, err := svc.GetOrCreate(ctx, "MLB1", scrape.CategoryGames, 25)
	require.NoError(t, err)
	assert.Equal(t, 25.0, custom.DiscountPercentage)

	// Non-positive falls back to the configured default.
	def, err := svc.GetOrCreate(ctx, "MLB2", scrape.CategoryGames, 0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, def.DiscountPercentage)
}

func TestService_GetOrCreate_ReusesExistingUsableCoupon(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, Config{})

	ctx := context.Background()
	first, err := svc.GetOrCreate(ctx, "MLB1", scrape.CategoryGames, 0)
	require.NoError(t, err)

	again, err := svc.GetOrCreate(ctx, "MLB1", scrape.CategoryGames, 0)
	require.NoError(t, err)
	assert.Equal(t, first.CouponCode, again.CouponCode)
	assert.Len(t, repo.created, 1)
}

func TestService_GetOrCreate_ExpiredCouponIsReplaced(t *testing.T) {
	repo := newFakeRepo()
	past := time.Now().Add(-time.Hour)
	repo.byProduct["MLB1"] = &domain.Coupon{CouponCode: "GAME_01", ProductID: "MLB1", IsActive: true, ExpiresAt: &past}
	repo.byCode["GAME_01"] = repo.byProduct["MLB1"]

	svc := NewService(repo, Config{})
	coupon, err := svc.GetOrCreate(context.Background(), "MLB1", scrape.CategoryGames, 0)
	require.NoError(t, err)
	assert.Equal(t, "GAME_02", coupon.CouponCode)
}

func TestService_GetOrCreate_UnknownCategoryUsesFallbackPrefix(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, Config{})

	coupon, err := svc.GetOrCreate(context.Background(), "MLB1", "Outros", 0)
	require.NoError(t, err)
	assert.Equal(t, "PROMO_01", coupon.CouponCode)
}

func TestService_GetOrCreate_SequenceScanFailureRestartsAtOne(t *testing.T) {
	repo := newFakeRepo()
	repo.listErr = assert.AnError
	svc := NewService(repo, Config{})

	coupon, err := svc.GetOrCreate(context.Background(), "MLB9", scrape.CategoryHome, 0)
	require.NoError(t, err, "sequence scan failure must not block issuance")
	assert.Equal(t, "CASA_01", coupon.CouponCode)
}

func TestService_GetOrCreate_CollisionGetsSalted(t *testing.T) {
	repo := newFakeRepo()
	// A code the sequence scan cannot see, so nextCode re-produces it.
	repo.byCode["INFO_01"] = &domain.Coupon{CouponCode: "INFO_01", ProductID: "other"}
	repo.listErr = assert.AnError

	svc := NewService(repo, Config{})
	coupon, err := svc.GetOrCreate(context.Background(), "MLB1", scrape.CategoryComputing, 0)
	require.NoError(t, err)
	assert.NotEqual(t, "INFO_01", coupon.CouponCode)
	assert.Contains(t, coupon.CouponCode, "INFO_01_")
	assert.Len(t, coupon.CouponCode, len("INFO_01_")+4)
}

func TestService_Redeem(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, Config{MaxUsage: 1})

	ctx := context.Background()
	issued, err := svc.GetOrCreate(ctx, "MLB1", scrape.CategoryPhones, 0)
	require.NoError(t, err)

	redeemed, err := svc.Redeem(ctx, issued.CouponCode)
	require.NoError(t, err)
	assert.Equal(t, 1, redeemed.UsageCount)

	// Usage cap reached.
	_, err = svc.Redeem(ctx, issued.CouponCode)
	assert.ErrorIs(t, err, ErrCouponNotFound)
}

func TestApplyToLink(t *testing.T) {
	coupon := &domain.Coupon{CouponCode: "CEL_03"}

	assert.Equal(t,
		"https://shopee.com.br/p?af_id=1&coupon=CEL_03",
		ApplyToLink("https://shopee.com.br/p?af_id=1", coupon),
	)
	assert.Equal(t, "https://x.com/p", ApplyToLink("https://x.com/p", nil))
}
