package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/waypost/waypost/internal/core"
	"github.com/waypost/waypost/internal/output"
)

var reverseCmd = &cobra.Command{
	Use:   "reverse",
	Short: "Resolve a position to the places at or near it",
	RunE:  runReverse,
}

func init() {
	rootCmd.AddCommand(reverseCmd)

	reverseCmd.Flags().Float64("lat", 0, "Latitude to look up")
	reverseCmd.Flags().Float64("lon", 0, "Longitude to look up")
	reverseCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table, json, markdown")
	reverseCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	reverseCmd.Flags().String("out-dir", "", "Write output to a directory")
	reverseCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
	_ = reverseCmd.MarkFlagRequired("lat")
	_ = reverseCmd.MarkFlagRequired("lon")
}

func runReverse(cmd *cobra.Command, _ []string) error {
	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	if err := validateCLICoordinates(lat, lon); err != nil {
		return err
	}

	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	outPath, outDir, err := resolveOutputTargets(cmd)
	if err != nil {
		return err
	}
	noCache, _ := cmd.Flags().GetBool("no-cache")

	ctx := cmd.Context()
	planner, cleanup, err := newPlanner(ctx, noCache)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := planner.Reverse(ctx, core.Position{lon, lat})
	if err != nil {
		return err
	}

	rendered, err := output.NewFormatter(format).FormatGeocode(result)
	if err != nil {
		return err
	}

	if outDir != "" {
		outDir, err = ensureOutDir(outDir)
		if err != nil {
			return err
		}
		outPath = filepath.Join(outDir, fmt.Sprintf("reverse.%s.%s",
			sanitizeFilename(fmt.Sprintf("%.5f-%.5f", lat, lon)), outputExtension(format)))
	}

	sink, err := openSink(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	_, err = fmt.Fprintln(sink.writer, rendered)
	return err
}
