package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/conflict-dash/internal/config"
	"github.com/sells-group/conflict-dash/internal/fetcher"
	"github.com/sells-group/conflict-dash/internal/model"
	"github.com/sells-group/conflict-dash/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const headerLine = "id,year,region,country,conflict_name,type_of_violence,active_year," +
	"date_start,date_end,where_prec,date_prec,deaths_a,deaths_b,deaths_civilians,deaths_unknown,best,latitude,longitude\n"

const rows = "" +
	"244657,2020,Africa,Mali,Mali:Government,1,1,2020/01/05 00:00:00.000,2020/01/07 00:00:00.000,1,1,10,15,3,2,30,14.35,-4.2\n" +
	"244658,2020,Africa,Mali,Dan Na Ambassagou - Fulani,2,0,2020/03/01 00:00:00.000,2020/02/27 00:00:00.000,2,1,4,4,0,2,10,,\n" +
	"301102,2021,Europe,Ukraine,Ukraine:Donbass,1,1,2021-06-01,2021-06-30,4,4,40,50,5,5,100,48.0,37.8\n"

func load(t *testing.T, body string) (*Dataset, error) {
	t.Helper()
	return Load(context.Background(), source.NewCSVReader("test.csv", strings.NewReader(body)), model.DefaultLabels())
}

func requireLoadError(t *testing.T, err error, kind ErrorKind) *LoadError {
	t.Helper()
	require.Error(t, err)
	var le *LoadError
	require.True(t, errors.As(err, &le), "expected *LoadError, got %T", err)
	assert.Equal(t, kind, le.Kind)
	return le
}

func TestLoad(t *testing.T) {
	d, err := load(t, headerLine+rows)
	require.NoError(t, err)

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, "test.csv", d.SourceName())
	assert.NotEmpty(t, d.Version())
	assert.False(t, d.LoadedAt().IsZero())
	assert.True(t, d.HasCoordinates())

	events := d.AllEvents()
	want := model.Event{
		ID:                "244657",
		Year:              2020,
		Region:            "Africa",
		Country:           "Mali",
		ConflictName:      "Mali:Government",
		ViolenceType:      model.ViolenceStateBased,
		ActiveYear:        model.ActiveOverThreshold,
		DateStart:         time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		DateEnd:           time.Date(2020, 1, 7, 0, 0, 0, 0, time.UTC),
		LocationPrecision: model.Precision{Code: 1, Label: "Exact location"},
		DatePrecision:     model.Precision{Code: 1, Label: "Exact date"},
		Fatalities:        model.Fatalities{Best: 30, SideA: 10, SideB: 15, Civilian: 3, Unknown: 2},
		ConflictPeriod:    2,
		HasCoordinates:    true,
		Latitude:          14.35,
		Longitude:         -4.2,
	}
	if diff := cmp.Diff(want, events[0]); diff != "" {
		t.Errorf("first event mismatch (-want +got):\n%s", diff)
	}

	// Reversed dates clamp to zero; blank coordinates mean no location.
	assert.Equal(t, 0, events[1].ConflictPeriod)
	assert.False(t, events[1].HasCoordinates)
	assert.Equal(t, model.ViolenceNonState, events[1].ViolenceType)
	assert.Equal(t, model.ActiveUnderThreshold, events[1].ActiveYear)

	assert.Equal(t, 29, events[2].ConflictPeriod)
	assert.Equal(t, "Month known", events[2].DatePrecision.Label)
}

func TestLoad_DistinctValues(t *testing.T) {
	d, err := load(t, headerLine+rows+
		"9,2019,Asia,Myanmar (Burma),x,3,1,2019/01/01 00:00:00,2019/01/01 00:00:00,1,1,0,0,1,0,1,,\n"+
		"10,100,Asia,Myanmar (Burma),x,3,1,2019/01/01 00:00:00,2019/01/01 00:00:00,1,1,0,0,1,0,1,,\n")
	require.NoError(t, err)

	assert.Equal(t, []int{100, 2019, 2020, 2021}, d.DistinctYears())
	assert.Equal(t, []string{"100", "2019", "2020", "2021"}, d.DistinctValues(model.FieldYear))
	assert.Equal(t, []string{"Africa", "Asia", "Europe"}, d.DistinctValues(model.FieldRegion))
	assert.Equal(t, []string{"Mali", "Myanmar (Burma)", "Ukraine"}, d.DistinctValues(model.FieldCountry))
	assert.Equal(t, []string{"Non-state conflict", "One-sided violence", "State-based conflict"},
		d.DistinctValues(model.FieldViolenceType))
}

func TestLoad_NormalizesText(t *testing.T) {
	// Decomposed "o" plus combining circumflex, with surrounding space.
	body := headerLine + "1,2011,Africa, Co\u0302te d'Ivoire ,x,3,1,2011/03/01 00:00:00,2011/03/02 00:00:00,1,1,0,0,5,0,5,,\n"
	d, err := load(t, body)
	require.NoError(t, err)
	assert.Equal(t, "C\u00f4te d'Ivoire", d.AllEvents()[0].Country)
}

func TestLoad_CanonicalHeaderWithoutCoordinates(t *testing.T) {
	body := "ID,Year,Region,Country,Conflict_Name,type_of_violence_code,active_year_code,date_start,date_end," +
		"where_prec_code,date_prec_code,deaths_a,deaths_b,deaths_civilians,deaths_unknown,best\n" +
		"1,2020,Africa,Mali,x,1,1,2020/01/01 00:00:00,2020/01/02 00:00:00,1,1,1,1,1,1,4\n"
	d, err := load(t, body)
	require.NoError(t, err)
	assert.False(t, d.HasCoordinates())
	assert.Equal(t, int64(4), d.AllEvents()[0].Fatalities.Best)
}

func TestLoad_MissingColumns(t *testing.T) {
	_, err := load(t, "id,year,region\n1,2020,Africa\n")
	le := requireLoadError(t, err, KindSchema)
	assert.Contains(t, le.Error(), "country")
	assert.Contains(t, le.Error(), "best")
	assert.Equal(t, "test.csv", le.Source)
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		column string
	}{
		{"bad date", "1,2020,Africa,Mali,x,1,1,yesterday,2020/01/02 00:00:00,1,1,0,0,0,0,1,,", "date_start"},
		{"unknown violence code", "1,2020,Africa,Mali,x,7,1,2020/01/01 00:00:00,2020/01/02 00:00:00,1,1,0,0,0,0,1,,", "type_of_violence_code"},
		{"non-numeric best", "1,2020,Africa,Mali,x,1,1,2020/01/01 00:00:00,2020/01/02 00:00:00,1,1,0,0,0,0,many,,", "best"},
		{"negative count", "1,2020,Africa,Mali,x,1,1,2020/01/01 00:00:00,2020/01/02 00:00:00,1,1,-3,0,0,0,1,,", "deaths_a"},
		{"empty year", "1,,Africa,Mali,x,1,1,2020/01/01 00:00:00,2020/01/02 00:00:00,1,1,0,0,0,0,1,,", "year"},
		{"latitude out of range", "1,2020,Africa,Mali,x,1,1,2020/01/01 00:00:00,2020/01/02 00:00:00,1,1,0,0,0,0,1,95,3", "latitude"},
		{"short row", "1,2020,Africa", "type_of_violence_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, headerLine+rows+tt.row+"\n")
			le := requireLoadError(t, err, KindParse)
			assert.Equal(t, 4, le.Row)
			assert.Equal(t, 5, le.Line)
			assert.Equal(t, tt.column, le.Column)
		})
	}
}

func TestLoad_IntegralFloats(t *testing.T) {
	body := headerLine + "1,2020.0,Africa,Mali,x,1.0,1,2020/01/01,2020/01/02,1,1,0,0,0,0,12.0,,\n"
	d, err := load(t, body)
	require.NoError(t, err)
	assert.Equal(t, 2020, d.AllEvents()[0].Year)
	assert.Equal(t, int64(12), d.AllEvents()[0].Fatalities.Best)

	_, err = load(t, headerLine+"1,2020,Africa,Mali,x,1,1,2020/01/01,2020/01/02,1,1,0,0,0,0,12.5,,\n")
	requireLoadError(t, err, KindParse)
}

func TestLoad_Empty(t *testing.T) {
	_, err := load(t, "")
	requireLoadError(t, err, KindEmpty)

	_, err = load(t, headerLine)
	requireLoadError(t, err, KindEmpty)
}

func TestLoad_MalformedCSV(t *testing.T) {
	_, err := Load(context.Background(),
		&stubSource{rows: []fetcher.Row{{Line: 1, Fields: strings.Split(strings.TrimSpace(headerLine), ",")}}, err: errors.New("bare quote")},
		model.DefaultLabels())
	requireLoadError(t, err, KindParse)
}

func TestLoad_UnreachableStream(t *testing.T) {
	_, err := Load(context.Background(), &stubSource{err: errors.New("connection refused")}, model.DefaultLabels())
	le := requireLoadError(t, err, KindUnreachable)
	assert.Contains(t, le.Error(), "connection refused")
}

func TestLoad_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var b strings.Builder
	b.WriteString(headerLine)
	for range 500 {
		b.WriteString(strings.SplitN(rows, "\n", 2)[0] + "\n")
	}
	_, err := Load(ctx, source.NewCSVReader("big.csv", strings.NewReader(b.String())), model.DefaultLabels())
	require.Error(t, err)
}

func TestLoadConfigured(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ged.csv")
	require.NoError(t, os.WriteFile(path, []byte(headerLine+rows), 0o644))

	d, labels, err := LoadConfigured(context.Background(), config.DatasetConfig{Source: path})
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, "One-sided violence", labels.ViolenceType[3])
}

func TestLoadConfigured_Unreachable(t *testing.T) {
	_, _, err := LoadConfigured(context.Background(), config.DatasetConfig{
		Source:     filepath.Join(t.TempDir(), "missing.csv"),
		MaxRetries: 1,
	})
	requireLoadError(t, err, KindUnreachable)
}

func TestLoadConfigured_BadLabels(t *testing.T) {
	_, _, err := LoadConfigured(context.Background(), config.DatasetConfig{
		Source:     "unused.csv",
		LabelsPath: filepath.Join(t.TempDir(), "nope.yaml"),
	})
	requireLoadError(t, err, KindSchema)
}

func TestAccessorsReturnCopies(t *testing.T) {
	d, err := load(t, headerLine+rows)
	require.NoError(t, err)

	all := d.AllEvents()
	all[0].Country = "Atlantis"
	sel := d.Select(nil)
	sel[1].Fatalities.Best = 0
	regions := d.DistinctValues(model.FieldRegion)
	regions[0] = "Antarctica"

	fresh := d.AllEvents()
	assert.Equal(t, "Mali", fresh[0].Country)
	assert.Equal(t, int64(10), fresh[1].Fatalities.Best)
	assert.Equal(t, "Africa", d.DistinctValues(model.FieldRegion)[0])
}

func TestSelect(t *testing.T) {
	d, err := load(t, headerLine+rows)
	require.NoError(t, err)

	got := d.Select(func(e *model.Event) bool { return e.Country == "Mali" })
	require.Len(t, got, 2)
	assert.Equal(t, "244657", got[0].ID)
	assert.Equal(t, "244658", got[1].ID)

	none := d.Select(func(*model.Event) bool { return false })
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFromEvents(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d := FromEvents("mem", []model.Event{
		{ID: "a", Year: 2021, Region: "Asia", DateStart: start, DateEnd: start.Add(72 * time.Hour)},
		{ID: "b", Year: 2020, Region: "Africa", DateStart: start, DateEnd: start.Add(-time.Hour)},
	})
	assert.Equal(t, "mem", d.SourceName())
	assert.Equal(t, []int{2020, 2021}, d.DistinctYears())
	assert.Equal(t, 3, d.AllEvents()[0].ConflictPeriod)
	assert.Equal(t, 0, d.AllEvents()[1].ConflictPeriod)
	assert.False(t, d.HasCoordinates())
}

func TestLoadError_Message(t *testing.T) {
	err := &LoadError{Kind: KindParse, Source: "ged.csv", Row: 4, Line: 5, Column: "best", Err: errors.New("invalid integer")}
	assert.Equal(t, "load ged.csv: parse error at row 4 (line 5), column best: invalid integer", err.Error())

	err = &LoadError{Kind: KindEmpty, Source: "ged.csv", Err: errors.New("source has no data rows")}
	assert.Equal(t, "load ged.csv: empty error: source has no data rows", err.Error())
}

// stubSource emits fixed rows followed by an optional stream error.
type stubSource struct {
	rows []fetcher.Row
	err  error
}

func (s *stubSource) Name() string { return "stub" }
func (s *stubSource) Close() error { return nil }

func (s *stubSource) Stream(ctx context.Context) (<-chan fetcher.Row, <-chan error) {
	rowCh := make(chan fetcher.Row)
	errCh := make(chan error, 1)
	go func() {
		defer close(rowCh)
		defer close(errCh)
		for _, r := range s.rows {
			select {
			case rowCh <- r:
			case <-ctx.Done():
				return
			}
		}
		if s.err != nil {
			errCh <- s.err
		}
	}()
	return rowCh, errCh
}
