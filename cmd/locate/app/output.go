package app

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectrum-locator/internal/locate"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEstimate(w io.Writer, estimate *locate.PositionEstimate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Method:\t%s\n", estimate.Method)
	fmt.Fprintf(tw, "Solver:\t%s\n", estimate.Solver)
	fmt.Fprintf(tw, "Position:\t%s\n", formatPosition(estimate))
	fmt.Fprintf(tw, "Accuracy:\t%s\n", formatAccuracy(estimate))
	fmt.Fprintf(tw, "Contributing:\t%d\n", estimate.Contributing)
	if estimate.ResidualRMSM != nil {
		fmt.Fprintf(tw, "Residual RMS:\t%s\n", humanize.SIWithDigits(*estimate.ResidualRMSM, 2, "m"))
	}
	if estimate.LowConfidence {
		fmt.Fprintln(tw, "Confidence:\tlow, station geometry does not support a fix")
	}
	for _, ray := range estimate.Rays {
		fmt.Fprintf(tw, "Ray %s:\t%.1f°\n", ray.StationID, ray.BearingDeg)
	}

	return tw.Flush()
}

func formatPosition(estimate *locate.PositionEstimate) string {
	return fmt.Sprintf("%.6f, %.6f", estimate.Position.Lat, estimate.Position.Lon)
}

func formatAccuracy(estimate *locate.PositionEstimate) string {
	acc, ok := estimate.Accuracy()
	if !ok {
		return "unknown"
	}
	return humanize.SIWithDigits(acc, 2, "m")
}
