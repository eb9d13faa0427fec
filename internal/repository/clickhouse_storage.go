// Package repository provides the ClickHouse-backed Storage and the
// Kafka-backed Publisher behind the domain interfaces.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"PairPulse/internal/domain/models"
	domrepo "PairPulse/internal/domain/repository"
)

const (
	ticksTable  = "pp_ticks"
	barsTable   = "pp_bars"
	alertsTable = "pp_alert_rules"
)

// ClickHouseStorage implements Storage over a ClickHouse connection
// pool. Ticks and closed bars are append-only; alert rules are stored as
// one versioned JSON document.
type ClickHouseStorage struct {
	db *sql.DB
}

// NewClickHouseStorage creates ClickHouse-backed storage.
func NewClickHouseStorage(db *sql.DB) domrepo.Storage {
	return &ClickHouseStorage{db: db}
}

// Init creates the schema, idempotently.
func (s *ClickHouseStorage) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ts DateTime64(3, 'UTC'),
			instrument String,
			price Float64,
			quantity Float64
		) ENGINE = MergeTree ORDER BY (instrument, ts)`, ticksTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			instrument String,
			resolution String,
			bucket_start DateTime64(3, 'UTC'),
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64
		) ENGINE = ReplacingMergeTree ORDER BY (instrument, resolution, bucket_start)`, barsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name String,
			doc String,
			updated_at DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree(updated_at) ORDER BY name`, alertsTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) StoreTick(ctx context.Context, t *models.Tick) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, instrument, price, quantity) VALUES (?, ?, ?, ?)", ticksTable)
	_, err := s.db.ExecContext(ctx, q, t.Timestamp, t.Instrument, t.Price, t.Quantity)
	return err
}

func (s *ClickHouseStorage) StoreTickBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	// Multi-row VALUES to keep round-trips down; 2000 rows per chunk.
	const chunkSize = 2000
	for start := 0; start < len(ticks); start += chunkSize {
		end := start + chunkSize
		if end > len(ticks) {
			end = len(ticks)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*4)
		for _, t := range ticks[start:end] {
			if t == nil || t.Instrument == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?)")
			args = append(args, t.Timestamp, t.Instrument, t.Price, t.Quantity)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, instrument, price, quantity) VALUES %s", ticksTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseStorage) QueryTicks(ctx context.Context, instrument string, from, to time.Time, limit int) ([]*models.Tick, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT instrument, ts, price, quantity FROM %s WHERE instrument = ?", ticksTable)
	args := []interface{}{instrument}
	if !from.IsZero() {
		sb.WriteString(" AND ts >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		sb.WriteString(" AND ts <= ?")
		args = append(args, to)
	}
	sb.WriteString(" ORDER BY ts ASC")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticks []*models.Tick
	for rows.Next() {
		var t models.Tick
		if err := rows.Scan(&t.Instrument, &t.Timestamp, &t.Price, &t.Quantity); err != nil {
			return nil, err
		}
		t.Timestamp = t.Timestamp.UTC()
		ticks = append(ticks, &t)
	}
	return ticks, rows.Err()
}

func (s *ClickHouseStorage) StoreBar(ctx context.Context, b *models.Bar) error {
	q := fmt.Sprintf("INSERT INTO %s (instrument, resolution, bucket_start, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", barsTable)
	_, err := s.db.ExecContext(ctx, q,
		b.Instrument, b.Resolution, b.BucketStart,
		b.Open, b.High, b.Low, b.Close, b.Volume,
	)
	return err
}

func (s *ClickHouseStorage) QueryBars(ctx context.Context, instrument string, res domrepo.Resolution, from, to time.Time, limit int) ([]*models.Bar, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT instrument, resolution, bucket_start, open, high, low, close, volume FROM %s FINAL WHERE instrument = ? AND resolution = ?", barsTable)
	args := []interface{}{instrument, string(res)}
	if !from.IsZero() {
		sb.WriteString(" AND bucket_start >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		sb.WriteString(" AND bucket_start <= ?")
		args = append(args, to)
	}
	sb.WriteString(" ORDER BY bucket_start ASC")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []*models.Bar
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Instrument, &b.Resolution, &b.BucketStart,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.BucketStart = b.BucketStart.UTC()
		bars = append(bars, &b)
	}
	return bars, rows.Err()
}

// SaveAlertRules replaces the persisted rule set with a fresh JSON
// document; ReplacingMergeTree keeps only the newest version per name.
func (s *ClickHouseStorage) SaveAlertRules(ctx context.Context, rules []*models.AlertRule) error {
	doc, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal alert rules: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (name, doc, updated_at) VALUES (?, ?, ?)", alertsTable)
	_, err = s.db.ExecContext(ctx, q, "rules", string(doc), time.Now().UTC())
	return err
}

func (s *ClickHouseStorage) LoadAlertRules(ctx context.Context) ([]*models.AlertRule, error) {
	q := fmt.Sprintf("SELECT doc FROM %s WHERE name = ? ORDER BY updated_at DESC LIMIT 1", alertsTable)
	var doc string
	err := s.db.QueryRowContext(ctx, q, "rules").Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rules []*models.AlertRule
	if err := json.Unmarshal([]byte(doc), &rules); err != nil {
		return nil, fmt.Errorf("unmarshal alert rules: %w", err)
	}
	return rules, nil
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // pool owned by pkg/clickhouse
}
