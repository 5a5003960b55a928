package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/spectrum-locator/internal/config"
	"github.com/roman-kulish/spectrum-locator/internal/record"
	"github.com/roman-kulish/spectrum-locator/internal/storage"
)

// runtime is the state shared by all subcommands, resolved before any of them runs.
type runtime struct {
	configFile string
	dbPath     string
	verbose    bool

	settings *config.Config
	logger   *slog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "locate",
		Short: "Estimate transmitter positions from measurement results",
		Long: `Locate turns DF bearings or TDOA pairs of a measurement result into an
estimated transmitter position, exports it as GeoJSON and keeps measurement
results in a SQLite archive.

Examples:
  locate df result.json --geojson fix.geojson
  locate tdoa result.json --ignore-location --json
  locate import result1.json result2.json --db archive.db
  locate capabilities system-parameters.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.init(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&rt.configFile, "config", "c", "", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&rt.dbPath, "db", "", "archive database (default: storage.path of the configuration)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newDFCommand(rt),
		newTDOACommand(rt),
		newImportCommand(rt),
		newMeasurementsCommand(rt),
		newCapabilitiesCommand(rt),
	)

	return root
}

func (rt *runtime) init(logOutput io.Writer) (err error) {
	if rt.settings, err = config.Load(rt.configFile); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if rt.dbPath == "" {
		rt.dbPath = rt.settings.Storage.Path
	}

	level := rt.settings.LogLevel()
	if rt.verbose {
		level = slog.LevelDebug
	}
	rt.logger = slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level}))
	return nil
}

func (rt *runtime) openStore() *storage.SqliteStore {
	rt.logger.Debug("opening archive", slog.String("path", rt.dbPath))
	return storage.NewSqliteStore(rt.dbPath)
}

func readResult(path string) (*record.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result, err := record.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}
