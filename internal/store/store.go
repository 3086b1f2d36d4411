// Package store reads event tables from SQL databases and writes dataset
// snapshots back to them.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/conflict-dash/internal/fetcher"
	"github.com/sells-group/conflict-dash/internal/model"
)

// Columns is the column order of a snapshot events table. The names are the
// canonical input columns, so a snapshot loads back without aliasing.
var Columns = []string{
	"id", "year", "region", "country", "conflict_name",
	"type_of_violence_code", "active_year_code",
	"date_start", "date_end",
	"where_prec_code", "date_prec_code",
	"deaths_a", "deaths_b", "deaths_civilians", "deaths_unknown", "best",
	"latitude", "longitude",
}

// Snapshot describes one dataset copy written to a store.
type Snapshot struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotWriter persists a full copy of a loaded dataset.
type SnapshotWriter interface {
	Migrate(ctx context.Context) error
	WriteSnapshot(ctx context.Context, meta Snapshot, events []model.Event, labels model.Labels) (*Snapshot, error)
	Close() error
}

// TableReader streams an events table as rows, header first.
type TableReader interface {
	Name() string
	Stream(ctx context.Context) (<-chan fetcher.Row, <-chan error)
	Close() error
}

// Record converts an event back to raw column values in Columns order.
// Codes are recovered through labels; coordinates are nil when absent.
func Record(e *model.Event, labels model.Labels) ([]any, error) {
	violence, err := labels.ViolenceCode(e.ViolenceType)
	if err != nil {
		return nil, eris.Wrapf(err, "store: event %s", e.ID)
	}
	active, err := labels.ActiveCode(e.ActiveYear)
	if err != nil {
		return nil, eris.Wrapf(err, "store: event %s", e.ID)
	}

	var lat, lon any
	if e.HasCoordinates {
		lat, lon = e.Latitude, e.Longitude
	}

	return []any{
		e.ID, e.Year, e.Region, e.Country, e.ConflictName,
		violence, active,
		e.DateStart, e.DateEnd,
		e.LocationPrecision.Code, e.DatePrecision.Code,
		e.Fatalities.SideA, e.Fatalities.SideB, e.Fatalities.Civilian, e.Fatalities.Unknown, e.Fatalities.Best,
		lat, lon,
	}, nil
}

// splitTable splits an optionally schema-qualified table name.
func splitTable(name string) []string {
	return strings.Split(name, ".")
}

// quoteIdent quotes each part of a possibly schema-qualified identifier.
func quoteIdent(name string) string {
	parts := splitTable(name)
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
