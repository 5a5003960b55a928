package app

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/spectrum-locator/internal/station"
)

func newCapabilitiesCommand(rt *runtime) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "capabilities <system-parameters.json>",
		Short: "Report the DF and TDOA capabilities of the measurement stations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			params, err := station.Decode(f)
			if err != nil {
				return err
			}

			capabilities, summary := station.NewAnalyzer(station.WithLogger(rt.logger)).Analyze(params)

			if asJSON {
				return printJSON(cmd.OutOrStdout(), struct {
					Stations []station.Capability `json:"stations"`
					Summary  station.Summary      `json:"summary"`
				}{capabilities, summary})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STATION\tNAME\tDF\tTDOA\tSIGNAL PATHS")
			for _, c := range capabilities {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					c.StationID,
					c.StationName,
					yesNo(c.SupportsDF),
					yesNo(c.SupportsTDOA),
					strings.Join(c.SignalPaths, ", "))
			}
			if err = w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n%d stations, %d DF capable (fix: %s), %d TDOA capable (fix: %s)\n",
				summary.Total,
				summary.DFCapable, yesNo(summary.CanDF),
				summary.TDOACapable, yesNo(summary.CanTDOA))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the capabilities as JSON")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
