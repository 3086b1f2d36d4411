package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/store"
)

var (
	snapshotOut   string
	snapshotTable string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Copy the configured dataset into a SQLite file or Postgres table",
	Long: "Loads the configured source and writes it to --out, a SQLite file path or a postgres:// DSN. " +
		"Later runs can load it with dataset.source set to sqlite://<file> or the same DSN.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ds, labels, err := loadDataset(ctx, nil)
		if err != nil {
			return err
		}

		w, err := openSnapshotWriter(ctx, snapshotOut, snapshotTable)
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		if err := w.Migrate(ctx); err != nil {
			return err
		}
		snap, err := w.WriteSnapshot(ctx, store.Snapshot{
			Source:  ds.SourceName(),
			Version: ds.Version(),
		}, ds.AllEvents(), labels)
		if err != nil {
			return err
		}

		zap.L().Info("snapshot complete",
			zap.String("snapshot_id", snap.ID),
			zap.String("out", snapshotOut),
			zap.Int("rows", snap.Rows),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s (snapshot %s)\n", snap.Rows, snapshotOut, snap.ID)
		return nil
	},
}

func openSnapshotWriter(ctx context.Context, out, table string) (store.SnapshotWriter, error) {
	switch {
	case out == "":
		return nil, eris.New("snapshot: --out is required")
	case strings.HasPrefix(out, "postgres://"), strings.HasPrefix(out, "postgresql://"):
		pg, err := store.NewPostgres(ctx, out, table)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		db, err := store.NewSQLite(strings.TrimPrefix(out, "sqlite://"), table)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "SQLite file path or postgres:// DSN")
	snapshotCmd.Flags().StringVar(&snapshotTable, "table", "ged_events", "events table name")
	rootCmd.AddCommand(snapshotCmd)
}
