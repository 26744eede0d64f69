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

var routeCmd = &cobra.Command{
	Use:   "route <query>",
	Short: "Plan a route to the best match for a query",
	Long: `Geocode the query anchored at the given start position, take the best
match, and plan a driving route to it via OpenRouteService.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)

	routeCmd.Flags().Float64("lat", 0, "Start latitude")
	routeCmd.Flags().Float64("lon", 0, "Start longitude")
	routeCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table, json, markdown")
	routeCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	routeCmd.Flags().String("out-dir", "", "Write output to a directory")
	routeCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
	_ = routeCmd.MarkFlagRequired("lat")
	_ = routeCmd.MarkFlagRequired("lon")
}

func runRoute(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		return errors.New("query is required")
	}

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

	result, err := planner.Route(ctx, core.Position{lon, lat}, query)
	if err != nil {
		return err
	}

	rendered, err := output.NewFormatter(format).FormatRoute(result)
	if err != nil {
		return err
	}

	if outDir != "" {
		outDir, err = ensureOutDir(outDir)
		if err != nil {
			return err
		}
		outPath = filepath.Join(outDir, fmt.Sprintf("route.%s.%s", sanitizeFilename(query), outputExtension(format)))
	}

	sink, err := openSink(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	_, err = fmt.Fprintln(sink.writer, rendered)
	return err
}

func validateCLICoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v is out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v is out of range [-180, 180]", lon)
	}
	return nil
}
