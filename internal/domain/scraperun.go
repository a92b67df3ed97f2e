package domain

import "time"

// RunStatus is the state of a ScrapeRun.
type RunStatus string

// Run statuses. Running is the only non-terminal state.
const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// Terminal reports whether the status accepts no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusError
}

// ScrapeRun is the audit record of one attempt to refresh product data
// for a tracked affiliate link. It distinguishes "attempted and failed"
// from "never attempted".
type ScrapeRun struct {
	ID              string
	AffiliateLinkID string
	Status          RunStatus
	StartedAt       time.Time
	FinishedAt      *time.Time
	Error           string
}
