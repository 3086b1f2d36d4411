package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/fetcher"
	"github.com/sells-group/conflict-dash/internal/model"
)

// pool is the subset of *pgxpool.Pool used by PostgresStore.
type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore streams an events table from Postgres and writes snapshots
// into it with COPY.
type PostgresStore struct {
	pool  pool
	table string
	name  string
}

var (
	_ SnapshotWriter = (*PostgresStore)(nil)
	_ TableReader    = (*PostgresStore)(nil)
)

// NewPostgres connects to Postgres. table may be schema-qualified.
func NewPostgres(ctx context.Context, connString, table string) (*PostgresStore, error) {
	if table == "" {
		table = "ged_events"
	}
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	name := fmt.Sprintf("postgres://%s:%d/%s#%s", cfg.ConnConfig.Host, cfg.ConnConfig.Port, cfg.ConnConfig.Database, table)
	return &PostgresStore{pool: p, table: table, name: name}, nil
}

// Name identifies the store without credentials.
func (s *PostgresStore) Name() string {
	return s.name
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ident() pgx.Identifier {
	return pgx.Identifier(splitTable(s.table))
}

const postgresEventsDDL = `
CREATE TABLE IF NOT EXISTS %s (
	id                    TEXT NOT NULL,
	year                  INTEGER NOT NULL,
	region                TEXT NOT NULL,
	country               TEXT NOT NULL,
	conflict_name         TEXT NOT NULL,
	type_of_violence_code SMALLINT NOT NULL,
	active_year_code      SMALLINT NOT NULL,
	date_start            TIMESTAMP NOT NULL,
	date_end              TIMESTAMP NOT NULL,
	where_prec_code       SMALLINT NOT NULL,
	date_prec_code        SMALLINT NOT NULL,
	deaths_a              BIGINT NOT NULL,
	deaths_b              BIGINT NOT NULL,
	deaths_civilians      BIGINT NOT NULL,
	deaths_unknown        BIGINT NOT NULL,
	best                  BIGINT NOT NULL,
	latitude              DOUBLE PRECISION,
	longitude             DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS conflict_snapshots (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	version    TEXT NOT NULL,
	row_count  INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the events and snapshot tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(postgresEventsDDL, s.ident().Sanitize()))
	return eris.Wrap(err, "postgres: migrate")
}

// WriteSnapshot truncates the events table and bulk-loads events using the
// COPY protocol inside one transaction.
func (s *PostgresStore) WriteSnapshot(ctx context.Context, meta Snapshot, events []model.Event, labels model.Labels) (*Snapshot, error) {
	rows := make([][]any, 0, len(events))
	for i := range events {
		rec, err := Record(&events[i], labels)
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin snapshot")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "TRUNCATE "+s.ident().Sanitize()); err != nil {
		return nil, eris.Wrapf(err, "postgres: truncate %s", s.table)
	}

	if len(rows) > 0 {
		n, err := tx.CopyFrom(ctx, s.ident(), Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: COPY INTO %s", s.table)
		}
		if int(n) != len(rows) {
			return nil, eris.Errorf("postgres: COPY INTO %s wrote %d of %d rows", s.table, n, len(rows))
		}
	}

	snap := meta
	snap.ID = uuid.New().String()
	snap.Rows = len(events)
	snap.CreatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`INSERT INTO conflict_snapshots (id, source, version, row_count, created_at) VALUES ($1, $2, $3, $4, $5)`,
		snap.ID, snap.Source, snap.Version, snap.Rows, snap.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit snapshot")
	}

	zap.L().Info("postgres: snapshot written",
		zap.String("snapshot_id", snap.ID),
		zap.String("table", s.table),
		zap.Int("rows", snap.Rows),
	)
	return &snap, nil
}

// Stream reads the events table. The first row carries the column names.
func (s *PostgresStore) Stream(ctx context.Context) (<-chan fetcher.Row, <-chan error) {
	rowCh := make(chan fetcher.Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		rows, err := s.pool.Query(ctx, "SELECT * FROM "+s.ident().Sanitize())
		if err != nil {
			errCh <- eris.Wrapf(err, "postgres: query %s", s.table)
			return
		}
		defer rows.Close()

		fds := rows.FieldDescriptions()
		header := make([]string, len(fds))
		for i, fd := range fds {
			header[i] = fd.Name
		}

		send := func(r fetcher.Row) bool {
			select {
			case rowCh <- r:
				return true
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "postgres: context cancelled")
				return false
			}
		}

		if !send(fetcher.Row{Line: 1, Fields: header}) {
			return
		}

		line := 1
		for rows.Next() {
			vals, err := rows.Values()
			if err != nil {
				errCh <- eris.Wrap(err, "postgres: read row")
				return
			}
			fields := make([]string, len(vals))
			for i, v := range vals {
				fields[i] = formatValue(v)
			}
			line++
			if !send(fetcher.Row{Line: line, Fields: fields}) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			errCh <- eris.Wrap(err, "postgres: iterate rows")
		}
	}()

	return rowCh, errCh
}

// formatValue renders a decoded column value the way a CSV export would.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(model.DateLayout)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return ""
		}
		return formatValue(dv)
	default:
		return fmt.Sprint(x)
	}
}
