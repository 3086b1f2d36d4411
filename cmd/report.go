package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/conflict-dash/internal/model"
	"github.com/sells-group/conflict-dash/internal/query"
)

var (
	reportSel    selectionFlags
	reportTop    int
	reportMetric string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print summary cards, the violence breakdown and top locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := reportSel.selection()
		if err != nil {
			return err
		}
		metric, err := query.ParseMetric(reportMetric)
		if err != nil {
			return err
		}

		ds, _, err := loadDataset(cmd.Context(), nil)
		if err != nil {
			return err
		}
		engine := query.NewEngine(ds, engineOptions(nil))

		n := reportTop
		if n <= 0 {
			n = cfg.Query.TopN
		}
		d := engine.Dashboard(sel)
		renderReport(cmd.OutOrStdout(), d, engine.Top(sel, metric, n), metric)
		return nil
	},
}

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2196F3")).
			Padding(0, 2).
			Align(lipgloss.Center)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
	reportLocale = message.NewPrinter(language.English)
)

func card(label string, value any) string {
	return cardStyle.Render(titleStyle.Render(label) + "\n" + reportLocale.Sprintf("%d", value))
}

func newTable(numeric map[int]bool, headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case numeric[col]:
				return numberStyle
			default:
				return cellStyle
			}
		})
}

func renderReport(w io.Writer, d *query.Dashboard, top []query.LocationRow, metric query.Metric) {
	for _, warning := range d.Warnings {
		fmt.Fprintln(w, warnStyle.Render("warning: "+warning))
	}
	if d.Empty {
		fmt.Fprintln(w, "No events match the selection.")
		return
	}

	s := d.Summary
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
		card("Years", s.DistinctYears),
		card("Regions", s.DistinctRegions),
		card("Countries", s.DistinctCountries),
		card("Conflicts", s.EventCount),
		card("Fatalities", s.FatalitySum),
	))

	violence := newTable(map[int]bool{1: true, 2: true}, "Violence type", "Conflicts", "Fatalities")
	for _, v := range d.Violence {
		violence.Row(string(v.ViolenceType),
			reportLocale.Sprintf("%d", v.EventCount),
			reportLocale.Sprintf("%d", v.FatalitySum))
	}
	fmt.Fprintln(w, violence.String())

	ranked := newTable(map[int]bool{0: true, 3: true}, "#", "Region", "Country", strings.ToUpper(string(metric)))
	for i, row := range top {
		ranked.Row(fmt.Sprint(i+1), row.Region, row.Country, reportLocale.Sprintf("%d", metric.Value(row)))
	}
	fmt.Fprintln(w, ranked.String())

	if len(d.Threshold.Under) > 0 {
		under := newTable(map[int]bool{1: true}, "Region", string(model.ActiveUnderThreshold))
		for _, row := range d.Threshold.Under {
			under.Row(row.Region, reportLocale.Sprintf("%d", row.FatalitySum))
		}
		fmt.Fprintln(w, under.String())
	}
}

func init() {
	reportSel.register(reportCmd, model.Fields...)
	reportCmd.Flags().IntVar(&reportTop, "top", 0, "number of ranked locations (default from config)")
	reportCmd.Flags().StringVar(&reportMetric, "metric", string(query.MetricFatalities), "ranking metric (conflicts, fatalities, side_a, side_b, civilian, unknown)")
	rootCmd.AddCommand(reportCmd)
}
