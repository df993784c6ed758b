package services

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/codyseavey/moki-tracker/internal/models"
)

const (
	defaultChartWidth  = 600
	defaultChartHeight = 200
	maxChartDimension  = 2000

	chartPadding   = 8
	chartRiseColor = "#4ade80"
	chartFallColor = "#f87171"
)

// SparklineSVG draws the valuation series as a single line. A rising
// series is green, a falling one red. Fewer than two points draw a flat
// line through the middle.
func SparklineSVG(points []models.ValuationPoint, width, height int) []byte {
	width, height = chartSize(width, height)

	color := chartRiseColor
	if len(points) > 1 && points[len(points)-1].TotalValue < points[0].TotalValue {
		color = chartFallColor
	}

	var path strings.Builder
	for i, p := range sparklineCoords(points, width, height) {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, p[0], p[1])
	}

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`+
		`<path d="%s" fill="none" stroke="%s" stroke-width="3" stroke-linejoin="round" stroke-linecap="round"/></svg>`,
		width, height, width, height, strings.TrimSpace(path.String()), color)
	return []byte(svg)
}

// SparklinePNG rasterizes SparklineSVG
func SparklinePNG(points []models.ValuationPoint, width, height int) ([]byte, error) {
	width, height = chartSize(width, height)
	return svgToPNG(SparklineSVG(points, width, height), width, height)
}

func chartSize(width, height int) (int, int) {
	if width <= 0 {
		width = defaultChartWidth
	}
	if height <= 0 {
		height = defaultChartHeight
	}
	return min(width, maxChartDimension), min(height, maxChartDimension)
}

// sparklineCoords maps values into the padded drawing area, y growing downward
func sparklineCoords(points []models.ValuationPoint, width, height int) [][2]float64 {
	left, right := float64(chartPadding), float64(width-chartPadding)
	top, bottom := float64(chartPadding), float64(height-chartPadding)
	mid := (top + bottom) / 2

	if len(points) < 2 {
		return [][2]float64{{left, mid}, {right, mid}}
	}

	lo, hi := points[0].TotalValue, points[0].TotalValue
	for _, p := range points[1:] {
		lo = min(lo, p.TotalValue)
		hi = max(hi, p.TotalValue)
	}

	step := (right - left) / float64(len(points)-1)
	coords := make([][2]float64, len(points))
	for i, p := range points {
		y := mid
		if hi > lo {
			y = bottom - (p.TotalValue-lo)/(hi-lo)*(bottom-top)
		}
		coords[i] = [2]float64{left + float64(i)*step, y}
	}
	return coords
}

// svgToPNG renders SVG data onto a transparent width x height canvas,
// preserving the aspect ratio and centering the drawing
func svgToPNG(svgData []byte, width, height int) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse svg: %w", err)
	}

	w, h := icon.ViewBox.W, icon.ViewBox.H
	if w <= 0 || h <= 0 {
		w, h = float64(width), float64(height)
	}

	scale := min(float64(width)/w, float64(height)/h)
	outW := int(w * scale)
	outH := int(h * scale)
	offsetX := (width - outW) / 2
	offsetY := (height - outH) / 2
	icon.SetTarget(float64(offsetX), float64(offsetY), float64(outW), float64(outH))

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	raster := rasterx.NewDasher(width, height, scanner)
	icon.Draw(raster, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
