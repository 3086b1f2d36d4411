package fetcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain reads every row, then the error channel.
func drain(rows <-chan Row, errs <-chan error) ([]Row, error) {
	var out []Row
	for r := range rows {
		out = append(out, r)
	}
	return out, <-errs
}

func TestStreamCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  CSVOptions
		want  []Row
	}{
		{
			name:  "header and rows",
			input: "id,year,region\n1,2020,Africa\n2,2021,Asia\n",
			want: []Row{
				{Line: 1, Fields: []string{"id", "year", "region"}},
				{Line: 2, Fields: []string{"1", "2020", "Africa"}},
				{Line: 3, Fields: []string{"2", "2021", "Asia"}},
			},
		},
		{
			name:  "quoted newline keeps start line",
			input: "id,conflict_name\n1,\"Sudan:\nGovernment\"\n2,Mali\n",
			want: []Row{
				{Line: 1, Fields: []string{"id", "conflict_name"}},
				{Line: 2, Fields: []string{"1", "Sudan:\nGovernment"}},
				{Line: 4, Fields: []string{"2", "Mali"}},
			},
		},
		{
			name:  "excel byte order mark",
			input: "\ufeffid,year\n7,1989\n",
			want: []Row{
				{Line: 1, Fields: []string{"id", "year"}},
				{Line: 2, Fields: []string{"7", "1989"}},
			},
		},
		{
			name:  "pipe delimited and trimmed",
			input: " country | best \n Chad | 12 \n",
			opts:  CSVOptions{Delimiter: '|', TrimSpace: true},
			want: []Row{
				{Line: 1, Fields: []string{"country", "best"}},
				{Line: 2, Fields: []string{"Chad", "12"}},
			},
		},
		{
			name:  "comment lines skipped",
			input: "# GED 24.1 export\nid,year\n1,2020\n",
			opts:  CSVOptions{Comment: '#'},
			want: []Row{
				{Line: 2, Fields: []string{"id", "year"}},
				{Line: 3, Fields: []string{"1", "2020"}},
			},
		},
		{
			name:  "short rows pass through",
			input: "id,year,region\n1,2020\n",
			want: []Row{
				{Line: 1, Fields: []string{"id", "year", "region"}},
				{Line: 2, Fields: []string{"1", "2020"}},
			},
		},
		{
			name:  "lazy quotes",
			input: "id,source_headline\n1,army \"cleared\" village\n",
			opts:  CSVOptions{LazyQuotes: true},
			want: []Row{
				{Line: 1, Fields: []string{"id", "source_headline"}},
				{Line: 2, Fields: []string{"1", `army "cleared" village`}},
			},
		},
		{name: "empty input", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := drain(StreamCSV(context.Background(), strings.NewReader(tt.input), tt.opts))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestStreamCSV_UnterminatedQuote(t *testing.T) {
	rows, err := drain(StreamCSV(context.Background(), strings.NewReader("id,country\n1,\"Mali\n"), CSVOptions{}))
	require.ErrorContains(t, err, "csv: read row")
	assert.Len(t, rows, 1)
}

func TestStreamCSV_Cancellation(t *testing.T) {
	input := strings.Repeat("1,2020,Africa\n", 10000)
	ctx, cancel := context.WithCancel(context.Background())
	rows, errs := StreamCSV(ctx, strings.NewReader(input), CSVOptions{})

	for range 3 {
		<-rows
	}
	cancel()

	done := make(chan struct{})
	go func() {
		for range rows {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rows not closed after cancel")
	}
	if err := <-errs; err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
