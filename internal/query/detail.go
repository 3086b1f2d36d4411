package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/conflict-dash/internal/model"
)

// DefaultPageSize is the detail-table page size.
const DefaultPageSize = 12

// DetailRow is one line of the detail table.
type DetailRow struct {
	ID                string             `json:"id"`
	Year              int                `json:"year"`
	Region            string             `json:"region"`
	Country           string             `json:"country"`
	ConflictName      string             `json:"conflict_name"`
	ViolenceType      model.ViolenceType `json:"violence_type"`
	DateStart         time.Time          `json:"date_start"`
	DateEnd           time.Time          `json:"date_end"`
	ConflictPeriod    int                `json:"conflict_period"`
	Best              int64              `json:"best"`
	LocationPrecision model.Precision    `json:"location_precision"`
	DatePrecision     model.Precision    `json:"date_precision"`
}

// DetailRows projects events into table rows sorted by conflict period
// descending, then best fatalities descending. Remaining ties keep input
// order.
func DetailRows(filtered []model.Event) []DetailRow {
	rows := make([]DetailRow, len(filtered))
	for i := range filtered {
		e := &filtered[i]
		rows[i] = DetailRow{
			ID:                e.ID,
			Year:              e.Year,
			Region:            e.Region,
			Country:           e.Country,
			ConflictName:      e.ConflictName,
			ViolenceType:      e.ViolenceType,
			DateStart:         e.DateStart,
			DateEnd:           e.DateEnd,
			ConflictPeriod:    e.ConflictPeriod,
			Best:              e.Fatalities.Best,
			LocationPrecision: e.LocationPrecision,
			DatePrecision:     e.DatePrecision,
		}
	}
	slices.SortStableFunc(rows, func(a, b DetailRow) int {
		if c := cmpDesc(a.ConflictPeriod, b.ConflictPeriod); c != 0 {
			return c
		}
		return cmpDesc(a.Best, b.Best)
	})
	return rows
}

var detailColumns = map[string]func(a, b DetailRow) int{
	"id":                 func(a, b DetailRow) int { return strings.Compare(a.ID, b.ID) },
	"year":               func(a, b DetailRow) int { return cmp.Compare(a.Year, b.Year) },
	"region":             func(a, b DetailRow) int { return strings.Compare(a.Region, b.Region) },
	"country":            func(a, b DetailRow) int { return strings.Compare(a.Country, b.Country) },
	"conflict_name":      func(a, b DetailRow) int { return strings.Compare(a.ConflictName, b.ConflictName) },
	"violence_type":      func(a, b DetailRow) int { return a.ViolenceType.Ordinal() - b.ViolenceType.Ordinal() },
	"date_start":         func(a, b DetailRow) int { return a.DateStart.Compare(b.DateStart) },
	"date_end":           func(a, b DetailRow) int { return a.DateEnd.Compare(b.DateEnd) },
	"conflict_period":    func(a, b DetailRow) int { return cmp.Compare(a.ConflictPeriod, b.ConflictPeriod) },
	"best":               func(a, b DetailRow) int { return cmp.Compare(a.Best, b.Best) },
	"location_precision": func(a, b DetailRow) int { return cmp.Compare(a.LocationPrecision.Code, b.LocationPrecision.Code) },
	"date_precision":     func(a, b DetailRow) int { return cmp.Compare(a.DatePrecision.Code, b.DatePrecision.Code) },
}

// SortDetails returns a copy of rows stably sorted by one column.
func SortDetails(rows []DetailRow, column string, desc bool) ([]DetailRow, error) {
	compare, ok := detailColumns[strings.ToLower(strings.TrimSpace(column))]
	if !ok {
		return nil, eris.Errorf("unknown sort column: %q", column)
	}
	out := slices.Clone(rows)
	if out == nil {
		out = []DetailRow{}
	}
	slices.SortStableFunc(out, func(a, b DetailRow) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return out, nil
}

// DetailPage is one page of the detail table.
type DetailPage struct {
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalRows  int         `json:"total_rows"`
	TotalPages int         `json:"total_pages"`
	Rows       []DetailRow `json:"rows"`
}

// Paginate slices out a 1-based page. A page below 1 is treated as 1, a size
// below 1 as DefaultPageSize; a page past the end has no rows.
func Paginate(rows []DetailRow, page, size int) DetailPage {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	p := DetailPage{
		Page:       page,
		PageSize:   size,
		TotalRows:  len(rows),
		TotalPages: (len(rows) + size - 1) / size,
		Rows:       []DetailRow{},
	}
	start := (page - 1) * size
	if start >= len(rows) {
		return p
	}
	end := min(start+size, len(rows))
	p.Rows = slices.Clone(rows[start:end])
	return p
}
