package cmd

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/waypost/waypost/internal/core"
)

var previewCmd = &cobra.Command{
	Use:   "preview <query>",
	Short: "Render a PNG sketch of a planned route",
	Long: `Plan a route like the route command, then render its geometry to a small
PNG for quick visual review.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().Float64("lat", 0, "Start latitude")
	previewCmd.Flags().Float64("lon", 0, "Start longitude")
	previewCmd.Flags().String("out", "", "Output PNG path (defaults to route.<query>.png)")
	previewCmd.Flags().Int("size", 512, "Image dimension in pixels (128-2048)")
	previewCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
	_ = previewCmd.MarkFlagRequired("lat")
	_ = previewCmd.MarkFlagRequired("lon")
}

func runPreview(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		return errors.New("query is required")
	}

	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	if err := validateCLICoordinates(lat, lon); err != nil {
		return err
	}

	size, _ := cmd.Flags().GetInt("size")
	if size < 128 || size > 2048 {
		return errors.New("--size must be between 128 and 2048")
	}

	outPath, _ := cmd.Flags().GetString("out")
	outPath = strings.TrimSpace(outPath)
	if outPath == "" {
		outPath = fmt.Sprintf("route.%s.png", sanitizeFilename(query))
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
	if len(result.Geometry) < 4 {
		return errors.New("route has no geometry to render")
	}

	img := renderRoute(result.Geometry, size)

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close() // nolint:errcheck

	if err := png.Encode(outFile, img); err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d route points)\n", outPath, len(result.Geometry)/2)
	return err
}

// renderRoute plots a flattened lon/lat polyline on a square canvas. The line
// is drawn at double resolution and downscaled for smoother edges.
func renderRoute(geometry []float64, size int) image.Image {
	minLon, maxLon := geometry[0], geometry[0]
	minLat, maxLat := geometry[1], geometry[1]
	for i := 0; i+1 < len(geometry); i += 2 {
		minLon = math.Min(minLon, geometry[i])
		maxLon = math.Max(maxLon, geometry[i])
		minLat = math.Min(minLat, geometry[i+1])
		maxLat = math.Max(maxLat, geometry[i+1])
	}
	// Avoid division by zero for degenerate routes.
	if maxLon-minLon < 1e-9 {
		maxLon = minLon + 1e-9
	}
	if maxLat-minLat < 1e-9 {
		maxLat = minLat + 1e-9
	}

	const margin = 0.08
	canvasSize := size * 2
	span := float64(canvasSize) * (1 - 2*margin)
	offset := float64(canvasSize) * margin
	scale := span / math.Max(maxLon-minLon, maxLat-minLat)

	toPixel := func(plon, plat float64) (int, int) {
		x := offset + (plon-minLon)*scale
		// Latitude grows upward, pixel rows grow downward.
		y := offset + (maxLat-plat)*scale
		return int(x), int(y)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, canvasSize, canvasSize))
	for i := range canvas.Pix {
		canvas.Pix[i] = 0xff
	}

	line := color.RGBA{R: 0x1f, G: 0x4e, B: 0xc2, A: 0xff}
	for i := 0; i+3 < len(geometry); i += 2 {
		x0, y0 := toPixel(geometry[i], geometry[i+1])
		x1, y1 := toPixel(geometry[i+2], geometry[i+3])
		drawSegment(canvas, x0, y0, x1, y1, line)
	}

	start := color.RGBA{R: 0x1b, G: 0x8a, B: 0x3e, A: 0xff}
	end := color.RGBA{R: 0xc2, G: 0x2f, B: 0x1f, A: 0xff}
	sx, sy := toPixel(geometry[0], geometry[1])
	ex, ey := toPixel(geometry[len(geometry)-2], geometry[len(geometry)-1])
	drawMarker(canvas, sx, sy, start)
	drawMarker(canvas, ex, ey, end)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), canvas, canvas.Bounds(), draw.Over, nil)
	return dst
}

func drawSegment(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	steps := max(abs(x1-x0), abs(y1-y0))
	if steps == 0 {
		img.SetRGBA(x0, y0, c)
		return
	}
	for step := 0; step <= steps; step++ {
		t := float64(step) / float64(steps)
		x := x0 + int(math.Round(t*float64(x1-x0)))
		y := y0 + int(math.Round(t*float64(y1-y0)))
		img.SetRGBA(x, y, c)
		img.SetRGBA(x+1, y, c)
		img.SetRGBA(x, y+1, c)
	}
}

func drawMarker(img *image.RGBA, cx, cy int, c color.RGBA) {
	const radius = 6
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.SetRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
