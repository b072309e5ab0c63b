package analysis

import (
	"strings"

	"github.com/san-kum/pamjoint/internal/cycle"
)

type Point struct{ X, Y float64 }

// PhasePortrait holds data for a 2D phase plot
type PhasePortrait struct {
	XLabel, YLabel string
	Points         []Point
}

// TrackingPortrait plots the tracking error against the outer-loop output
// for every cycle where the cascade ran. A settled loop collapses to a
// point near the origin; a limit cycle draws a closed orbit.
func TrackingPortrait(reports []cycle.Report) *PhasePortrait {
	portrait := &PhasePortrait{
		XLabel: "error (deg)",
		YLabel: "delta (kPa)",
		Points: make([]Point, 0, len(reports)),
	}
	for _, r := range reports {
		if r.Skipped {
			continue
		}
		portrait.Points = append(portrait.Points, Point{X: r.Target - r.Angle, Y: r.Delta})
	}
	return portrait
}

// ZeroCrossings counts sign changes, ignoring exact zeros.
func ZeroCrossings(xs []float64) int {
	count, prev := 0, 0.0
	for _, x := range xs {
		if x == 0 {
			continue
		}
		if prev != 0 && (x > 0) != (prev > 0) {
			count++
		}
		prev = x
	}
	return count
}

// PhasePortraitToASCII converts phase portrait to ASCII art
func PhasePortraitToASCII(portrait *PhasePortrait, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 {
		return ""
	}

	minX, maxX := portrait.Points[0].X, portrait.Points[0].X
	minY, maxY := portrait.Points[0].Y, portrait.Points[0].Y
	for _, p := range portrait.Points {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	for _, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			grid[row][col] = '•'
		}
	}

	// axes where they cross the visible area
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if grid[row][col] == ' ' {
				grid[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if grid[row][col] == ' ' {
				grid[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(portrait.YLabel + " vs " + portrait.XLabel + "\n")
	for _, row := range grid {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
