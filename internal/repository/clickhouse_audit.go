package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
)

// ClickHouseAuditSink archives decisions in a ReplacingMergeTree keyed
// by decision id. Re-recording the same decision (a replay, or the
// enriched version of an earlier record) replaces the prior row rather
// than duplicating it, which keeps the export replay-stable.
type ClickHouseAuditSink struct {
	db    *sql.DB
	table string
}

// NewClickHouseAuditSink creates the ClickHouse archive sink.
func NewClickHouseAuditSink(db *sql.DB, table string) service.AuditSink {
	return &ClickHouseAuditSink{db: db, table: table}
}

// SchemaStatements returns the idempotent DDL for the audit table.
func SchemaStatements(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id          String,
    batch_id    String,
    signal_id   String,
    strategy_id String,
    symbol      String,
    direction   LowCardinality(String),
    horizon     LowCardinality(String),
    status      LowCardinality(String),
    reason      LowCardinality(String),
    detail      String,
    risk_pct    Float64,
    created_at  DateTime64(3),
    recorded_at DateTime64(3),
    payload     String
) ENGINE = ReplacingMergeTree(recorded_at)
ORDER BY (id)`, table)}
}

func (s *ClickHouseAuditSink) Record(ctx context.Context, d *models.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	riskPct := 0.0
	if d.Allocation != nil {
		riskPct = d.Allocation.TotalRiskPct
	}

	q := fmt.Sprintf(`INSERT INTO %s
(id, batch_id, signal_id, strategy_id, symbol, direction, horizon, status, reason, detail, risk_pct, created_at, recorded_at, payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	_, err = s.db.ExecContext(ctx, q,
		d.ID,
		d.BatchID,
		d.SignalID,
		d.StrategyID,
		d.Symbol,
		string(d.Direction),
		d.Horizon,
		string(d.Status),
		string(d.Reason),
		d.Detail,
		riskPct,
		d.CreatedAt,
		time.Now().UTC(),
		string(payload),
	)
	return err
}

func (s *ClickHouseAuditSink) Close() error {
	return nil // pool is managed by pkg/clickhouse
}
