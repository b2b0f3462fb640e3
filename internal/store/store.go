// Package store persists observation history and settlement records. Two
// backends ship: SQLite for single-operator use and Postgres for shared
// deployments.
package store

import (
	"context"
	"time"

	"github.com/northcover/parametric-cli/internal/model"
)

// ObservationFilter specifies criteria for listing observations.
type ObservationFilter struct {
	Route  string `json:"route,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// SettlementRecord is one settled verdict as persisted.
type SettlementRecord struct {
	ID           string              `json:"id"`
	PolicyID     string              `json:"policy_id"`
	Verdict      model.Verdict       `json:"verdict"`
	Confidence   int                 `json:"confidence"`
	UsedFallback bool                `json:"used_fallback"`
	Trace        model.DecisionTrace `json:"trace"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Store defines the persistence interface for the risk engine.
type Store interface {
	// Observations
	SaveObservations(ctx context.Context, observations []model.RouteObservation) (int, error)
	ListObservations(ctx context.Context, filter ObservationFilter) ([]model.RouteObservation, error)

	// Settlements
	RecordSettlement(ctx context.Context, policyID string, verdict SettlementVerdict) (*SettlementRecord, error)
	ListSettlements(ctx context.Context, policyID string, limit int) ([]SettlementRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// SettlementVerdict is the portion of a settlement outcome the caller
// provides; the store assigns ID and timestamp.
type SettlementVerdict struct {
	Verdict      model.Verdict       `json:"verdict"`
	Confidence   int                 `json:"confidence"`
	UsedFallback bool                `json:"used_fallback"`
	Trace        model.DecisionTrace `json:"trace"`
}
