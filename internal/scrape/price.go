package scrape

import (
	"sort"
	"strconv"
	"strings"
)

// installmentRatio marks the threshold below which the smallest distinct
// price fragment in a card is assumed to be an installment amount rather
// than a price: anything under ~15% of the largest fragment.
const installmentRatio = 0.15

// ParsePrice normalizes localized BRL price text to a numeric value.
// "R$ 1.299,00" parses to 1299.00. Returns 0 when nothing parseable
// remains.
func ParsePrice(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == ',' {
			b.WriteRune(r)
		}
	}
	clean := strings.ReplaceAll(b.String(), ",", ".")
	if clean == "" {
		return 0
	}
	// More than one decimal comma means the text was not a single price.
	if strings.Count(clean, ".") > 1 {
		return 0
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}

// selectCurrentPrice applies the tie-break heuristic over all price-like
// fragments collected from one card: deduplicate, discard the smallest
// distinct value when it looks like an installment fragment, then take
// the smallest remaining value as the current price.
func selectCurrentPrice(values []float64) float64 {
	distinct := make([]float64, 0, len(values))
	seen := make(map[float64]bool, len(values))
	for _, v := range values {
		if v > 0 && !seen[v] {
			seen[v] = true
			distinct = append(distinct, v)
		}
	}

	if len(distinct) == 0 {
		return 0
	}
	sort.Float64s(distinct)

	if len(distinct) >= 2 && distinct[0] < distinct[len(distinct)-1]*installmentRatio {
		distinct = distinct[1:]
	}
	return distinct[0]
}
