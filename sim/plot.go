package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// New2DPlot creates a new scatter plot of a simulation from three data
// sources storing 2D points in their rows:
// model:   idealised model values
// measure: measurement values
// filter:  filter estimate values
// It returns error if either of the data matrices is nil, has fewer than
// 2 columns or if the gonum plot fails to be created.
func New2DPlot(model, measure, filter *mat.Dense) (*plot.Plot, error) {
	if model == nil || measure == nil || filter == nil {
		return nil, fmt.Errorf("invalid data supplied")
	}

	for _, m := range []*mat.Dense{model, measure, filter} {
		if _, c := m.Dims(); c < 2 {
			return nil, fmt.Errorf("invalid data dimensions")
		}
	}

	p := plot.New()

	p.Title.Text = "Simulation"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	modelScatter, err := plotter.NewScatter(makePoints(model))
	if err != nil {
		return nil, err
	}
	modelScatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	modelScatter.Shape = draw.PyramidGlyph{}
	modelScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(modelScatter)
	p.Legend.Add("model", modelScatter)

	measScatter, err := plotter.NewScatter(makePoints(measure))
	if err != nil {
		return nil, err
	}
	measScatter.GlyphStyle.Color = color.RGBA{G: 255, A: 128}
	measScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(measScatter)
	p.Legend.Add("measurement", measScatter)

	filterScatter, err := plotter.NewScatter(makePoints(filter))
	if err != nil {
		return nil, err
	}
	filterScatter.GlyphStyle.Color = color.RGBA{R: 169, G: 169, B: 169}
	filterScatter.Shape = draw.CrossGlyph{}
	filterScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(filterScatter)
	p.Legend.Add("filtered", filterScatter)

	return p, nil
}

func makePoints(m *mat.Dense) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = m.At(i, 0)
		pts[i].Y = m.At(i, 1)
	}

	return pts
}
