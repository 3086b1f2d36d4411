package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/dataset"
	"github.com/sells-group/conflict-dash/internal/model"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the dataset and report its size",
	Long:  "Loads the configured source and prints row and distinct-value counts. Exits non-zero when the load fails.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, _, err := loadDataset(cmd.Context(), nil)
		if err != nil {
			var le *dataset.LoadError
			if errors.As(err, &le) {
				zap.L().Error("dataset load failed",
					zap.String("kind", string(le.Kind)),
					zap.String("source", le.Source),
					zap.Int("row", le.Row),
					zap.String("column", le.Column),
				)
			}
			return err
		}
		printCheck(cmd.OutOrStdout(), ds)
		return nil
	},
}

func printCheck(w io.Writer, ds *dataset.Dataset) {
	fmt.Fprintf(w, "source:    %s\n", ds.SourceName())
	fmt.Fprintf(w, "version:   %s\n", ds.Version())
	fmt.Fprintf(w, "rows:      %d\n", ds.Len())
	for _, f := range model.Fields {
		fmt.Fprintf(w, "%-10s %d distinct\n", string(f)+":", len(ds.DistinctValues(f)))
	}
	if years := ds.DistinctYears(); len(years) > 0 {
		fmt.Fprintf(w, "span:      %d-%d\n", years[0], years[len(years)-1])
	}
	fmt.Fprintf(w, "located:   %t\n", ds.HasCoordinates())
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
