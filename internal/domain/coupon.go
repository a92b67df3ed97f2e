package domain

import "time"

// Coupon is a marketplace discount code tracked with usage and expiry
// limits. IsActive records our intent to honor the code; registering it
// in the marketplace's own system is manual and out-of-band.
type Coupon struct {
	ID                 int64
	CouponCode         string
	ProductID          string
	DiscountPercentage float64
	DiscountAmount     float64
	Category           string
	CreatedAt          time.Time
	ExpiresAt          *time.Time
	IsActive           bool
	UsageCount         int
	MaxUsage           int // 0 = unlimited
}

// Usable reports whether the coupon can still be handed out at the given
// time: active, not expired, and under its usage cap.
func (c *Coupon) Usable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false
	}
	if c.MaxUsage > 0 && c.UsageCount >= c.MaxUsage {
		return false
	}
	return true
}
