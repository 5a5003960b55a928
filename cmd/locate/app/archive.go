package app

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roman-kulish/spectrum-locator/internal/storage"
)

func newImportCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "import <result.json> [result.json...]",
		Short: "Archive measurement results",
		Long: `Archive measurement results in the SQLite database. Every result is
validated first; a result with an invalid record is rejected as a whole and
the remaining files are still imported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			store := rt.openStore()
			defer func() {
				err = errors.Join(err, store.Close())
			}()

			var failed []error
			for _, path := range args {
				result, err := readResult(path)
				if err == nil {
					var id int64
					if id, err = storage.Archive(cmd.Context(), store, result); err == nil {
						rt.logger.Info("measurement result archived",
							slog.String("file", path),
							slog.Int64("measurementID", id),
							slog.Int("samples", len(result.Samples)),
							slog.Int("bearings", len(result.DF)),
							slog.Int("pairs", len(result.TDOA)))
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", path, id)
						continue
					}
				}
				rt.logger.Error("import failed", slog.String("file", path), slog.String("error", err.Error()))
				failed = append(failed, fmt.Errorf("%s: %w", path, err))
			}

			if len(failed) > 0 {
				return fmt.Errorf("%d of %d files not imported: %w", len(failed), len(args), errors.Join(failed...))
			}
			return nil
		},
	}
}

func newMeasurementsCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "measurements",
		Short: "List archived measurements with their latest estimate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			store := rt.openStore()
			defer func() {
				err = errors.Join(err, store.Close())
			}()

			measurements, err := store.Measurements(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing measurements: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEXTERNAL ID\tTYPE\tCREATED\tESTIMATE")
			for _, m := range measurements {
				estimates, err := store.Estimates(cmd.Context(), m.ID)
				if err != nil {
					return fmt.Errorf("reading estimates of measurement %d: %w", m.ID, err)
				}

				estimate := "-"
				if n := len(estimates); n > 0 {
					estimate = formatPosition(estimates[n-1])
				}

				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					m.ID,
					orDash(m.ExternalID),
					orDash(m.Type),
					humanize.RelTime(m.CreatedAt, time.Now(), "ago", "from now"),
					estimate)
			}
			return w.Flush()
		},
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
