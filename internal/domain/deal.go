// Package domain contains the core entities shared across the pipeline.
package domain

import "time"

// Deal is a promotional offer that completed the pipeline and was persisted.
// ExternalID is the canonical product identifier used for deduplication;
// once a Deal exists, the source item is never re-notified.
type Deal struct {
	ID           int64
	ExternalID   string
	Title        string
	Price        float64
	OriginalURL  string
	AffiliateURL string
	ImageURL     string
	Category     string
	Store        string
	SentAt       time.Time
}
