package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/northcover/parametric-cli/internal/db"
	"github.com/northcover/parametric-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"insert_settlement": `INSERT INTO settlements (id, policy_id, verdict, confidence, used_fallback, trace, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"list_settlements":  `SELECT id, policy_id, verdict, confidence, used_fallback, trace, created_at FROM settlements WHERE policy_id = $1 ORDER BY created_at DESC LIMIT $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS observations (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	route          TEXT NOT NULL,
	flight_id      TEXT,
	status         TEXT NOT NULL DEFAULT 'UNKNOWN',
	delay_minutes  INTEGER,
	payout_tier    INTEGER,
	payout_percent INTEGER,
	breach         BOOLEAN,
	imported_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS settlements (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	policy_id     TEXT NOT NULL,
	verdict       TEXT NOT NULL,
	confidence    INTEGER NOT NULL,
	used_fallback BOOLEAN NOT NULL DEFAULT false,
	trace         JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_observations_route ON observations(route);
CREATE INDEX IF NOT EXISTS idx_settlements_policy_id ON settlements(policy_id);
CREATE INDEX IF NOT EXISTS idx_settlements_created_at ON settlements(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var observationColumns = []string{
	"id", "route", "flight_id", "status",
	"delay_minutes", "payout_tier", "payout_percent", "breach", "imported_at",
}

func (s *PostgresStore) SaveObservations(ctx context.Context, observations []model.RouteObservation) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(observations))
	for _, obs := range observations {
		rows = append(rows, []any{
			uuid.New().String(), obs.Route, obs.FlightID, string(obs.Status),
			obs.DelayMinutes, obs.Tier, obs.PayoutPercent, obs.Breach, now,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "observations", observationColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save observations")
	}
	return int(n), nil
}

func (s *PostgresStore) ListObservations(ctx context.Context, filter ObservationFilter) ([]model.RouteObservation, error) {
	query := `SELECT route, flight_id, status, delay_minutes, payout_tier, payout_percent, breach FROM observations`
	var args []any

	if filter.Route != "" {
		query += ` WHERE route = $1`
		args = append(args, filter.Route)
	}
	query += ` ORDER BY imported_at, id`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += ` OFFSET $` + strconv.Itoa(len(args))
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list observations")
	}
	defer rows.Close()

	var observations []model.RouteObservation
	for rows.Next() {
		var obs model.RouteObservation
		var flightID *string
		var status string
		if err := rows.Scan(&obs.Route, &flightID, &status, &obs.DelayMinutes, &obs.Tier, &obs.PayoutPercent, &obs.Breach); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		if flightID != nil {
			obs.FlightID = *flightID
		}
		obs.Status = model.FlightStatus(status)
		observations = append(observations, obs)
	}
	return observations, eris.Wrap(rows.Err(), "postgres: list observations iterate")
}

func (s *PostgresStore) RecordSettlement(ctx context.Context, policyID string, verdict SettlementVerdict) (*SettlementRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	traceJSON, err := json.Marshal(verdict.Trace)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal trace")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO settlements (id, policy_id, verdict, confidence, used_fallback, trace, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, policyID, string(verdict.Verdict), verdict.Confidence, verdict.UsedFallback, traceJSON, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert settlement for policy %s", policyID)
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

func (s *PostgresStore) ListSettlements(ctx context.Context, policyID string, limit int) ([]SettlementRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, policy_id, verdict, confidence, used_fallback, trace, created_at FROM settlements`
	var args []any
	if policyID != "" {
		query += ` WHERE policy_id = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, policyID, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list settlements")
	}
	defer rows.Close()

	var records []SettlementRecord
	for rows.Next() {
		var rec SettlementRecord
		var verdict string
		var traceJSON []byte
		if err := rows.Scan(&rec.ID, &rec.PolicyID, &verdict, &rec.Confidence, &rec.UsedFallback, &traceJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan settlement")
		}
		rec.Verdict = model.Verdict(verdict)
		if err := json.Unmarshal(traceJSON, &rec.Trace); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal trace")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list settlements iterate")
}
