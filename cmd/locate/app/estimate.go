package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/spectrum-locator/internal/locate"
	"github.com/roman-kulish/spectrum-locator/internal/mapexport"
	"github.com/roman-kulish/spectrum-locator/internal/record"
	"github.com/roman-kulish/spectrum-locator/internal/storage"
)

// estimateFlags are shared by the df and tdoa commands.
type estimateFlags struct {
	geojsonFile string
	segments    int
	asJSON      bool
	archive     bool
}

func (f *estimateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.geojsonFile, "geojson", "g", "", "write the estimate as a GeoJSON feature collection to this file")
	cmd.Flags().IntVar(&f.segments, "segments", mapexport.DefaultCircleSegments, "number of segments of the accuracy circle")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the estimate as JSON")
	cmd.Flags().BoolVar(&f.archive, "archive", false, "archive the measurement result and the estimate")
}

func newDFCommand(rt *runtime) *cobra.Command {
	var flags estimateFlags
	var solver string

	cmd := &cobra.Command{
		Use:   "df <result.json>",
		Short: "Estimate the position from DF bearings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := readResult(args[0])
			if err != nil {
				return err
			}
			bearings, err := record.Bearings(result.DF)
			if err != nil {
				return err
			}

			opts := rt.settings.BearingOptions(rt.logger)
			if solver != "" {
				opts = append(opts, locate.WithSolver(locate.Solver(solver)))
			}

			estimate, err := locate.NewBearingEstimator(opts...).Estimate(bearings)
			if err != nil {
				return fmt.Errorf("estimating position: %w", err)
			}

			return rt.report(cmd, flags, result, estimate, mapexport.WithBearings(bearings))
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&solver, "solver", "", "override the configured solver (centroid, intersection)")
	return cmd
}

func newTDOACommand(rt *runtime) *cobra.Command {
	var flags estimateFlags
	var ignoreLocation bool

	cmd := &cobra.Command{
		Use:   "tdoa <result.json>",
		Short: "Estimate the position from TDOA station pairs",
		Long: `Estimate the position from TDOA station pairs. A location resolved by the
measurement service is accepted as is unless --ignore-location is given, in which
case the position is computed by multilateration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := readResult(args[0])
			if err != nil {
				return err
			}
			pairs, err := record.TimeDifferences(result.TDOA)
			if err != nil {
				return err
			}

			var opts []locate.EstimateOption
			if result.Location != nil && !ignoreLocation {
				position, err := result.Location.ToLatLon()
				if err != nil {
					return err
				}
				opts = append(opts, locate.WithResolvedPosition(position, result.Location.Accuracy))
			}

			estimator := locate.NewTDOAEstimator(rt.settings.TDOAOptions(rt.logger)...)
			estimate, err := estimator.Estimate(pairs, opts...)
			if err != nil {
				return fmt.Errorf("estimating position: %w", err)
			}

			return rt.report(cmd, flags, result, estimate, mapexport.WithTimeDifferences(pairs))
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&ignoreLocation, "ignore-location", false, "ignore the location resolved by the measurement service")
	return cmd
}

// report prints the estimate and performs the optional GeoJSON export and archiving.
func (rt *runtime) report(cmd *cobra.Command, flags estimateFlags, result *record.Result, estimate *locate.PositionEstimate, opts ...mapexport.Option) error {
	rt.logger.Info("position estimated",
		slog.String("method", string(estimate.Method)),
		slog.String("solver", string(estimate.Solver)),
		slog.Int("contributing", estimate.Contributing),
		slog.Bool("lowConfidence", estimate.LowConfidence))

	if flags.geojsonFile != "" {
		if err := writeGeoJSON(flags.geojsonFile, estimate, append(opts, mapexport.WithCircleSegments(flags.segments))...); err != nil {
			return err
		}
		rt.logger.Info("feature collection written", slog.String("file", flags.geojsonFile))
	}

	if flags.archive {
		id, err := rt.archiveEstimate(cmd.Context(), result, estimate)
		if err != nil {
			return err
		}
		rt.logger.Info("estimate archived", slog.Int64("measurementID", id), slog.String("db", rt.dbPath))
	}

	if flags.asJSON {
		return printJSON(cmd.OutOrStdout(), estimate)
	}
	return printEstimate(cmd.OutOrStdout(), estimate)
}

func (rt *runtime) archiveEstimate(ctx context.Context, result *record.Result, estimate *locate.PositionEstimate) (id int64, err error) {
	store := rt.openStore()
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	if id, err = storage.Archive(ctx, store, result); err != nil {
		return 0, fmt.Errorf("archiving measurement result: %w", err)
	}
	if err = store.StoreEstimate(ctx, id, estimate); err != nil {
		return 0, fmt.Errorf("archiving estimate: %w", err)
	}
	return id, nil
}

func writeGeoJSON(path string, estimate *locate.PositionEstimate, opts ...mapexport.Option) (err error) {
	fc, err := mapexport.NewExporter(opts...).FeatureCollection(estimate)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return mapexport.Write(out, fc)
}
