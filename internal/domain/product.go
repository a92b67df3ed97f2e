package domain

import "time"

// Product is the upsert target of the queued scrape variant, keyed by
// (Marketplace, CanonicalProductID).
type Product struct {
	ID                 string
	Marketplace        string
	CanonicalProductID string
	Title              string
	PriceCents         int
	Currency           string
	Rating             *float64
	ReviewCount        *int
	SellerName         string
	Category           string
	MainImageURL       string
	Images             []string
	URLAffiliate       string
	URLCanonical       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ProductVersion is an append-only snapshot written once per successful
// scrape of a product.
type ProductVersion struct {
	ID        string
	ProductID string
	Snapshot  []byte
	ScrapedAt time.Time
}
