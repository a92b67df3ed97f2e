package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"plain integer", "1299", 1299},
		{"currency with thousands separator", "R$ 1.299,00", 1299},
		{"decimal comma", "19,99", 19.99},
		{"whitespace and label noise", "  por R$ 89,90 à vista ", 89.90},
		{"empty", "", 0},
		{"no digits", "indisponível", 0},
		{"two prices in one string", "De 99,90 por 79,90", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParsePrice(tt.in), 0.001)
		})
	}
}

func TestSelectCurrentPrice(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single value", []float64{1299}, 1299},
		{"installment fragment discarded", []float64{1999, 19.99, 1299}, 1299},
		{"duplicates collapse before tie-break", []float64{1299, 1299, 1499}, 1299},
		{"small fragment kept when above ratio", []float64{100, 20}, 20},
		{"lone tiny value survives", []float64{19.99}, 19.99},
		{"zeros ignored", []float64{0, 0, 549}, 549},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, selectCurrentPrice(tt.values), 0.001)
		})
	}
}
