package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/northcover/parametric-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS observations (
	id             TEXT PRIMARY KEY,
	route          TEXT NOT NULL,
	flight_id      TEXT,
	status         TEXT NOT NULL DEFAULT 'UNKNOWN',
	delay_minutes  INTEGER,
	payout_tier    INTEGER,
	payout_percent INTEGER,
	breach         INTEGER,
	imported_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS settlements (
	id            TEXT PRIMARY KEY,
	policy_id     TEXT NOT NULL,
	verdict       TEXT NOT NULL,
	confidence    INTEGER NOT NULL,
	used_fallback INTEGER NOT NULL DEFAULT 0,
	trace         TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_observations_route ON observations(route);
CREATE INDEX IF NOT EXISTS idx_settlements_policy_id ON settlements(policy_id);
CREATE INDEX IF NOT EXISTS idx_settlements_created_at ON settlements(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveObservations(ctx context.Context, observations []model.RouteObservation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (id, route, flight_id, status, delay_minutes, payout_tier, payout_percent, breach, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, obs := range observations {
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(), obs.Route, obs.FlightID, string(obs.Status),
			obs.DelayMinutes, obs.Tier, obs.PayoutPercent, obs.Breach, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert observation for route %s", obs.Route)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit observations")
	}
	return len(observations), nil
}

func (s *SQLiteStore) ListObservations(ctx context.Context, filter ObservationFilter) ([]model.RouteObservation, error) {
	query := `SELECT route, flight_id, status, delay_minutes, payout_tier, payout_percent, breach FROM observations WHERE 1=1`
	var args []any

	if filter.Route != "" {
		query += ` AND route = ?`
		args = append(args, filter.Route)
	}
	query += ` ORDER BY imported_at, id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list observations")
	}
	defer rows.Close()

	var observations []model.RouteObservation
	for rows.Next() {
		var obs model.RouteObservation
		var flightID sql.NullString
		var status string
		var delay, tier, percent sql.NullInt64
		var breach sql.NullBool

		if err := rows.Scan(&obs.Route, &flightID, &status, &delay, &tier, &percent, &breach); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		obs.FlightID = flightID.String
		obs.Status = model.FlightStatus(status)
		obs.DelayMinutes = nullableInt(delay)
		obs.Tier = nullableInt(tier)
		obs.PayoutPercent = nullableInt(percent)
		if breach.Valid {
			b := breach.Bool
			obs.Breach = &b
		}
		observations = append(observations, obs)
	}
	return observations, eris.Wrap(rows.Err(), "sqlite: list observations iterate")
}

func (s *SQLiteStore) RecordSettlement(ctx context.Context, policyID string, verdict SettlementVerdict) (*SettlementRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	traceJSON, err := json.Marshal(verdict.Trace)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal trace")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settlements (id, policy_id, verdict, confidence, used_fallback, trace, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, policyID, string(verdict.Verdict), verdict.Confidence, verdict.UsedFallback, string(traceJSON), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert settlement for policy %s", policyID)
	}

	return &SettlementRecord{
		ID:           id,
		PolicyID:     policyID,
		Verdict:      verdict.Verdict,
		Confidence:   verdict.Confidence,
		UsedFallback: verdict.UsedFallback,
		Trace:        verdict.Trace,
		CreatedAt:    now,
	}, nil
}

func (s *SQLiteStore) ListSettlements(ctx context.Context, policyID string, limit int) ([]SettlementRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, policy_id, verdict, confidence, used_fallback, trace, created_at FROM settlements WHERE 1=1`
	var args []any
	if policyID != "" {
		query += ` AND policy_id = ?`
		args = append(args, policyID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list settlements")
	}
	defer rows.Close()

	var records []SettlementRecord
	for rows.Next() {
		var rec SettlementRecord
		var verdict, traceJSON string
		if err := rows.Scan(&rec.ID, &rec.PolicyID, &verdict, &rec.Confidence, &rec.UsedFallback, &traceJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan settlement")
		}
		rec.Verdict = model.Verdict(verdict)
		if err := json.Unmarshal([]byte(traceJSON), &rec.Trace); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal trace")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list settlements iterate")
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
