// Package scrape turns fetched marketplace pages into candidate deals
// using per-marketplace selector strategies.
//
// Marketplace frontends churn constantly, so every lookup runs through an
// ordered list of named selector strategies: newest layout first, older
// layouts as fallbacks. New layouts are added by appending data, not by
// branching logic.
package scrape

import (
	"errors"
	"fmt"

	"github.com/bissquit/promo-garden/internal/marketplace"
)

// Candidate is a deal parsed from a listing page, before deduplication
// and link generation. OldPrice is zero when the page carried no original
// price and synthesis is disabled.
type Candidate struct {
	Title       string
	Price       float64
	OldPrice    float64
	OriginalURL string
	ImageURL    string
	Category    string
}

// Extractor parses one marketplace's listing pages.
type Extractor interface {
	Marketplace() marketplace.Marketplace
	// Extract returns candidates in document order. Broken cards are
	// skipped, never fatal to the page.
	Extract(html, sourceURL string) ([]Candidate, error)
}

// Config tunes extraction behavior shared by all extractors.
type Config struct {
	// SynthesizeOldPrice, when > 0, fabricates a missing original price as
	// current price times this multiplier. Zero leaves it unset. One
	// upstream revision used 1.3; unset is the default policy.
	SynthesizeOldPrice float64
}

// ErrNoExtractor is returned for marketplaces that are detectable but
// have no listing extractor.
var ErrNoExtractor = errors.New("no extractor for marketplace")

// ForMarketplace returns the listing extractor for a marketplace.
func ForMarketplace(m marketplace.Marketplace, cfg Config) (Extractor, error) {
	switch m {
	case marketplace.MercadoLivre:
		return &MercadoLivreExtractor{cfg: cfg}, nil
	case marketplace.Shopee:
		return &ShopeeExtractor{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoExtractor, m)
	}
}

// absolutize resolves href against the marketplace origin when relative.
func absolutize(m marketplace.Marketplace, href string) string {
	if href == "" || href[0] != '/' {
		return href
	}
	return m.Origin() + href
}
