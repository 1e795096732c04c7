package domain

import (
	"context"
	"time"
)

// Lookup outcomes recorded for audit
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// LookupRecord describes one completed fetch. It is written for audit only
// and never read back into lookup state.
type LookupRecord struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id,omitempty"`
	City        string        `json:"city"`
	Units       UnitSystem    `json:"units"`
	Outcome     string        `json:"outcome"`
	Message     string        `json:"message,omitempty"`
	StatusCode  int           `json:"status_code,omitempty"`
	Location    string        `json:"location,omitempty"`
	Country     string        `json:"country,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	RequestedAt time.Time     `json:"requested_at"`
}

// LookupRecorder receives completed lookups
type LookupRecorder interface {
	SaveLookup(ctx context.Context, rec LookupRecord) error
}

// DataRepository defines the interface for lookup audit persistence
type DataRepository interface {
	LookupRecorder

	// RecentLookups returns the newest records first
	RecentLookups(ctx context.Context, limit int) ([]LookupRecord, error)

	// Health checks database connectivity
	Health(ctx context.Context) error
}
