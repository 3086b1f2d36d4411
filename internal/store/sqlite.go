package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/conflict-dash/internal/fetcher"
	"github.com/sells-group/conflict-dash/internal/model"
)

// SQLiteStore reads and writes an events table in a SQLite file using
// modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	table string
}

var (
	_ SnapshotWriter = (*SQLiteStore)(nil)
	_ TableReader    = (*SQLiteStore)(nil)
)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// table names the events table read by Stream and written by WriteSnapshot.
func NewSQLite(path, table string) (*SQLiteStore, error) {
	if table == "" {
		table = "ged_events"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, path: path, table: table}, nil
}

const sqliteEventsDDL = `
CREATE TABLE IF NOT EXISTS %s (
	id                    TEXT NOT NULL,
	year                  INTEGER NOT NULL,
	region                TEXT NOT NULL,
	country               TEXT NOT NULL,
	conflict_name         TEXT NOT NULL,
	type_of_violence_code INTEGER NOT NULL,
	active_year_code      INTEGER NOT NULL,
	date_start            TEXT NOT NULL,
	date_end              TEXT NOT NULL,
	where_prec_code       INTEGER NOT NULL,
	date_prec_code        INTEGER NOT NULL,
	deaths_a              INTEGER NOT NULL,
	deaths_b              INTEGER NOT NULL,
	deaths_civilians      INTEGER NOT NULL,
	deaths_unknown        INTEGER NOT NULL,
	best                  INTEGER NOT NULL,
	latitude              REAL,
	longitude             REAL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	version    TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
`

// Migrate creates the events and snapshots tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(sqliteEventsDDL, quoteIdent(s.table)))
	return eris.Wrap(err, "sqlite: migrate")
}

// Name identifies the store in logs and load errors.
func (s *SQLiteStore) Name() string {
	return "sqlite://" + s.path + "#" + s.table
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteSnapshot replaces the events table with events and records the
// snapshot, all in one transaction.
func (s *SQLiteStore) WriteSnapshot(ctx context.Context, meta Snapshot, events []model.Event, labels model.Labels) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin snapshot")
	}
	defer tx.Rollback() //nolint:errcheck

	table := quoteIdent(s.table)
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return nil, eris.Wrapf(err, "sqlite: clear %s", s.table)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(Columns, ", "), placeholders,
	))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range events {
		rec, err := Record(&events[i], labels)
		if err != nil {
			return nil, err
		}
		for j, v := range rec {
			if t, ok := v.(time.Time); ok {
				rec[j] = t.Format(model.DateLayout)
			}
		}
		if _, err := stmt.ExecContext(ctx, rec...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert event %s", events[i].ID)
		}
	}

	snap := meta
	snap.ID = uuid.New().String()
	snap.Rows = len(events)
	snap.CreatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, source, version, row_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.Source, snap.Version, snap.Rows, snap.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit snapshot")
	}

	zap.L().Info("sqlite: snapshot written",
		zap.String("snapshot_id", snap.ID),
		zap.String("table", s.table),
		zap.Int("rows", snap.Rows),
	)
	return &snap, nil
}

// Snapshots lists recorded snapshots, newest first.
func (s *SQLiteStore) Snapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, version, row_count, created_at FROM snapshots ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Source, &snap.Version, &snap.Rows, &snap.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		out = append(out, snap)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate snapshots")
}

// Stream reads the events table. The first row carries the column names;
// data rows are numbered from 2 to line up with a CSV export of the table.
func (s *SQLiteStore) Stream(ctx context.Context) (<-chan fetcher.Row, <-chan error) {
	rowCh := make(chan fetcher.Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(s.table))
		if err != nil {
			errCh <- eris.Wrapf(err, "sqlite: query %s", s.table)
			return
		}
		defer rows.Close() //nolint:errcheck

		cols, err := rows.Columns()
		if err != nil {
			errCh <- eris.Wrap(err, "sqlite: columns")
			return
		}

		send := func(r fetcher.Row) bool {
			select {
			case rowCh <- r:
				return true
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "sqlite: context cancelled")
				return false
			}
		}

		if !send(fetcher.Row{Line: 1, Fields: cols}) {
			return
		}

		line := 1
		for rows.Next() {
			vals := make([]sql.NullString, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				errCh <- eris.Wrap(err, "sqlite: scan row")
				return
			}

			fields := make([]string, len(cols))
			for i, v := range vals {
				fields[i] = v.String
			}
			line++
			if !send(fetcher.Row{Line: line, Fields: fields}) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			errCh <- eris.Wrap(err, "sqlite: iterate rows")
		}
	}()

	return rowCh, errCh
}
