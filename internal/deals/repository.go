// Package deals stores published deals and answers dedup queries.
package deals

import (
	"context"
	"errors"

	"github.com/bissquit/promo-garden/internal/domain"
)

// ErrAlreadyProcessed is returned when a deal with the same external ID
// was persisted before.
var ErrAlreadyProcessed = errors.New("deal already processed")

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	Category string
	Store    string
	Limit    int
	Offset   int
}

// Stats aggregates the deal table for the ops API.
type Stats struct {
	Total      int            `json:"total"`
	Last24h    int            `json:"last_24h"`
	ByCategory map[string]int `json:"by_category"`
	ByStore    map[string]int `json:"by_store"`
}

// Repository defines the interface for deal persistence.
type Repository interface {
	// IsProcessed reports whether externalID was seen before.
	IsProcessed(ctx context.Context, externalID string) (bool, error)
	// Save persists a deal and fills in ID and SentAt. A duplicate
	// external ID returns ErrAlreadyProcessed.
	Save(ctx context.Context, deal *domain.Deal) error
	List(ctx context.Context, filter Filter) ([]domain.Deal, error)
	Categories(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*Stats, error)
}
