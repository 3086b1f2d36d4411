package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/config"
)

var (
	cfg *config.Config

	sourceOverride   string
	logLevelOverride string
)

var rootCmd = &cobra.Command{
	Use:   "conflict-dash",
	Short: "UCDP conflict-event analytics",
	Long:  "Loads a UCDP Georeferenced Event Dataset extract and answers filtered dashboard queries over HTTP and on the command line.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyOverrides(loaded)
		cfg = loaded

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		zap.L().Debug("config loaded",
			zap.String("source", cfg.Dataset.Source),
			zap.String("log_level", cfg.Log.Level),
		)
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// applyOverrides lets the persistent flags win over file and env settings.
func applyOverrides(c *config.Config) {
	if sourceOverride != "" {
		c.Dataset.Source = sourceOverride
	}
	if logLevelOverride != "" {
		c.Log.Level = logLevelOverride
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sourceOverride, "source", "", "dataset source (path, URL, sqlite:// or postgres://, - for stdin)")
	rootCmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
