package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/domain/repository"
)

// ArchiveSchema creates the append-only envelope table.
var ArchiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS risk_envelopes (
		ts DateTime64(3),
		id String,
		type LowCardinality(String),
		source LowCardinality(String),
		payload String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(ts)
	ORDER BY (type, ts)
	TTL toDateTime(ts) + INTERVAL 90 DAY`,
}

const archiveFlushSize = 200

// ClickHouseArchive is the append-only audit sink for published envelopes.
// Writes are buffered and flushed in batches; the engine never reads back.
type ClickHouseArchive struct {
	db    *sql.DB
	table string

	mu  sync.Mutex
	buf []models.Envelope
}

// NewClickHouseArchive creates the archive over an initialized connection.
func NewClickHouseArchive(db *sql.DB, table string) repository.Archive {
	if table == "" {
		table = "risk_envelopes"
	}
	return &ClickHouseArchive{db: db, table: table}
}

func (a *ClickHouseArchive) Append(ctx context.Context, e models.Envelope) error {
	a.mu.Lock()
	a.buf = append(a.buf, e)
	full := len(a.buf) >= archiveFlushSize
	var batch []models.Envelope
	if full {
		batch = a.buf
		a.buf = nil
	}
	a.mu.Unlock()

	if !full {
		return nil
	}
	return a.flush(ctx, batch)
}

func (a *ClickHouseArchive) flush(ctx context.Context, batch []models.Envelope) error {
	if len(batch) == 0 {
		return nil
	}
	values := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*5)
	for _, e := range batch {
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, e.Timestamp, e.ID, string(e.Type), e.Source, string(e.Payload))
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, id, type, source, payload) VALUES %s",
		a.table, strings.Join(values, ","))
	if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("archive flush: %w", err)
	}
	return nil
}

// Close flushes the remaining buffer. The connection itself is owned by the
// clickhouse client package.
func (a *ClickHouseArchive) Close() error {
	a.mu.Lock()
	batch := a.buf
	a.buf = nil
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.flush(ctx, batch)
}
