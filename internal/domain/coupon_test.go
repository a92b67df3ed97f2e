package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoupon_Usable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		coupon   Coupon
		expected bool
	}{
		{
			name:     "active without limits",
			coupon:   Coupon{IsActive: true},
			expected: true,
		},
		{
			name:     "inactive",
			coupon:   Coupon{IsActive: false},
			expected: false,
		},
		{
			name:     "expired coupon is never usable regardless of flags",
			coupon:   Coupon{IsActive: true, ExpiresAt: &past, UsageCount: 0, MaxUsage: 100},
			expected: false,
		},
		{
			name:     "future expiry",
			coupon:   Coupon{IsActive: true, ExpiresAt: &future},
			expected: true,
		},
		{
			name:     "usage cap reached",
			coupon:   Coupon{IsActive: true, UsageCount: 5, MaxUsage: 5},
			expected: false,
		},
		{
			name:     "under usage cap",
			coupon:   Coupon{IsActive: true, UsageCount: 4, MaxUsage: 5},
			expected: true,
		},
		{
			name:     "zero max usage means unlimited",
			coupon:   Coupon{IsActive: true, UsageCount: 9999, MaxUsage: 0},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.coupon.Usable(now))
		})
	}
}

func TestRunStatus_Terminal(t *testing.T) {
	assert.False(t, RunStatusRunning.Terminal())
	assert.True(t, RunStatusSuccess.Terminal())
	assert.True(t, RunStatusError.Terminal())
}
