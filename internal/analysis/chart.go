package analysis

import (
	"errors"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/pamjoint/internal/cycle"
)

var ErrNoData = errors.New("analysis: no data to plot")

// Series is one line of a chart.
type Series struct {
	Name  string
	Color color.Color
	Value func(r cycle.Report) float64
}

var (
	AngleSeries = []Series{
		{Name: "angle", Color: color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}, Value: func(r cycle.Report) float64 { return r.Angle }},
		{Name: "target", Color: color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}, Value: func(r cycle.Report) float64 { return r.Target }},
	}
	PressureSeries = []Series{
		{Name: "pressure A", Color: color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}, Value: func(r cycle.Report) float64 { return r.PressureA }},
		{Name: "setpoint A", Color: color.RGBA{R: 0xff, G: 0x98, B: 0x96, A: 0xff}, Value: func(r cycle.Report) float64 { return r.SetpointA }},
		{Name: "pressure B", Color: color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}, Value: func(r cycle.Report) float64 { return r.PressureB }},
		{Name: "setpoint B", Color: color.RGBA{R: 0x98, G: 0xdf, B: 0x8a, A: 0xff}, Value: func(r cycle.Report) float64 { return r.SetpointB }},
	}
)

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Title.Padding = vg.Points(8)
	p.X.Label.Padding = vg.Points(6)
	p.Y.Label.Padding = vg.Points(6)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
}

// SaveChart renders series against run time into an image file. The
// format follows the file extension (png, svg, pdf).
func SaveChart(path, title, ylabel string, reports []cycle.Report, series []Series) error {
	if len(reports) == 0 {
		return ErrNoData
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = ylabel
	stylePlot(p)

	start := reports[0].Time
	for _, s := range series {
		pts := make(plotter.XYs, len(reports))
		for i, r := range reports {
			pts[i].X = r.Time.Sub(start).Seconds()
			pts[i].Y = s.Value(r)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = s.Color
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
