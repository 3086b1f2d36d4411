package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

type column int

const (
	colID column = iota
	colYear
	colRegion
	colCountry
	colConflictName
	colViolence
	colActive
	colDateStart
	colDateEnd
	colWherePrec
	colDatePrec
	colDeathsA
	colDeathsB
	colDeathsCivilians
	colDeathsUnknown
	colBest
	colLatitude
	colLongitude
	numColumns
)

// columnSpec names a column and the header spellings accepted for it. The
// first alias is the canonical name.
type columnSpec struct {
	aliases  []string
	optional bool
}

var columnSpecs = [numColumns]columnSpec{
	colID:              {aliases: []string{"id"}},
	colYear:            {aliases: []string{"year"}},
	colRegion:          {aliases: []string{"region"}},
	colCountry:         {aliases: []string{"country"}},
	colConflictName:    {aliases: []string{"conflict_name"}},
	colViolence:        {aliases: []string{"type_of_violence_code", "type_of_violence"}},
	colActive:          {aliases: []string{"active_year_code", "active_year"}},
	colDateStart:       {aliases: []string{"date_start"}},
	colDateEnd:         {aliases: []string{"date_end"}},
	colWherePrec:       {aliases: []string{"where_prec_code", "where_prec"}},
	colDatePrec:        {aliases: []string{"date_prec_code", "date_prec"}},
	colDeathsA:         {aliases: []string{"deaths_a"}},
	colDeathsB:         {aliases: []string{"deaths_b"}},
	colDeathsCivilians: {aliases: []string{"deaths_civilians"}},
	colDeathsUnknown:   {aliases: []string{"deaths_unknown"}},
	colBest:            {aliases: []string{"best"}},
	colLatitude:        {aliases: []string{"latitude"}, optional: true},
	colLongitude:       {aliases: []string{"longitude"}, optional: true},
}

func (c column) name() string {
	return columnSpecs[c].aliases[0]
}

// header maps each column to its index in a source row, -1 when absent.
type header struct {
	index     [numColumns]int
	hasCoords bool
}

// resolveHeader matches header cells case-insensitively against the accepted
// aliases. Every non-optional column must be present; coordinates are used
// only when both latitude and longitude exist.
func resolveHeader(cells []string) (*header, []string) {
	pos := make(map[string]int, len(cells))
	for i, c := range cells {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, seen := pos[key]; !seen {
			pos[key] = i
		}
	}

	h := &header{}
	var missing []string
	for c := range numColumns {
		h.index[c] = -1
		for _, alias := range columnSpecs[c].aliases {
			if i, ok := pos[alias]; ok {
				h.index[c] = i
				break
			}
		}
		if h.index[c] < 0 && !columnSpecs[c].optional {
			missing = append(missing, c.name())
		}
	}
	h.hasCoords = h.index[colLatitude] >= 0 && h.index[colLongitude] >= 0
	return h, missing
}

// dateLayouts are tried in order when parsing date_start and date_end.
var dateLayouts = []string{
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	time.RFC3339Nano,
	"2006-01-02",
	"2006/01/02",
	"1/2/06 15:04",
	"01-02-06",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("unparseable date %q", s)
}

// parseInt accepts plain integers and integral floats such as "12.0", which
// spreadsheet exports produce for numeric cells.
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.New("empty value")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("invalid integer %q", s)
	}
	return int64(f), nil
}

func parseCount(s string) (int64, error) {
	n, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, eris.Errorf("negative count %d", n)
	}
	return n, nil
}

func parseCoord(s string, limit float64) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, eris.Errorf("invalid coordinate %q", s)
	}
	if math.Abs(f) > limit {
		return 0, eris.Errorf("coordinate %v out of range", f)
	}
	return f, nil
}

// text normalizes a categorical value to NFC with surrounding space removed.
func text(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
