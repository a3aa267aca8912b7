package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "govreminder/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", cfg.Path, err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var (
		snap    Snapshot
		current sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT period_count, current_period, snapshot_timestamp FROM snapshot WHERE id = 1`,
	).Scan(&snap.PeriodCount, &current, &snap.SnapshotTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, err
	}
	if current.Valid {
		cp := int(current.Int64)
		snap.CurrentPeriod = &cp
	}
	return snap, nil
}

func (s *sqliteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	var current any
	if snap.CurrentPeriod != nil {
		current = *snap.CurrentPeriod
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshot(id, period_count, current_period, snapshot_timestamp) VALUES(1,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   period_count=excluded.period_count,
		   current_period=excluded.current_period,
		   snapshot_timestamp=excluded.snapshot_timestamp`,
		snap.PeriodCount, current, snap.SnapshotTimestamp,
	)
	return err
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, d DeliveryRecord) error {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(at, run_id, event, value1, value2, value3, status, dry_run, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		d.At.UTC().Format(time.RFC3339Nano), d.RunID, d.Event, d.Value1, d.Value2, d.Value3,
		d.Status, boolInt(d.DryRun), nullStr(d.Error), d.TookMS,
	)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
