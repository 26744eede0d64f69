package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/waypost/waypost/internal/core"
	"github.com/waypost/waypost/internal/output"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <query>",
	Short: "Resolve a free-text query to places",
	Long:  "Resolve a free-text query to candidate places via Photon, optionally anchored at a position.",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeocode,
}

func init() {
	rootCmd.AddCommand(geocodeCmd)

	geocodeCmd.Flags().Int("limit", 0, "Maximum number of matches (default 10)")
	geocodeCmd.Flags().Float64("lat", 0, "Anchor latitude to bias ranking")
	geocodeCmd.Flags().Float64("lon", 0, "Anchor longitude to bias ranking")
	geocodeCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table, json, markdown")
	geocodeCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	geocodeCmd.Flags().String("out-dir", "", "Write output to a directory")
	geocodeCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
}

func runGeocode(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		return errors.New("query is required")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return errors.New("--limit must be positive")
	}

	var anchor *core.Position
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
			return errors.New("--lat and --lon must be given together")
		}
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		if err := validateCLICoordinates(lat, lon); err != nil {
			return err
		}
		anchor = &core.Position{lon, lat}
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

	result, err := planner.Geocode(ctx, query, anchor, limit)
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
		outPath = filepath.Join(outDir, fmt.Sprintf("geocode.%s.%s", sanitizeFilename(query), outputExtension(format)))
	}

	sink, err := openSink(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	_, err = fmt.Fprintln(sink.writer, rendered)
	return err
}
