// Package visualize renders training reports as image files.
package visualize

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/befresh/phmodel/pkg/errors"
	"github.com/befresh/phmodel/sklearn/ensemble"
)

// Chart size, matching a 10x6 inch figure.
const (
	chartWidth  = 10 * vg.Inch
	chartHeight = 6 * vg.Inch
)

// ImportancePlot builds the bar chart of a feature ranking in ranking order,
// with the feature names as rotated X tick labels.
func ImportancePlot(ranking []ensemble.RankedFeature) (*plot.Plot, error) {
	if len(ranking) == 0 {
		return nil, errors.NewValueError("ImportancePlot", "ranking is empty")
	}

	values := make(plotter.Values, len(ranking))
	names := make([]string, len(ranking))
	for i, r := range ranking {
		values[i] = r.Importance
		names[i] = r.Name
	}

	p := plot.New()
	p.Title.Text = "Feature Importance"
	p.Y.Label.Text = "Importance"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build bar chart")
	}
	bars.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)

	p.NominalX(names...)
	p.X.Min = -1
	p.X.Max = float64(len(ranking))
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter

	return p, nil
}

// SaveImportanceChart writes the chart to path. The image format follows the
// file extension (png, svg, pdf, ...).
//
// Rendering panics (font or canvas backends) come back as a PanicError.
func SaveImportanceChart(path string, ranking []ensemble.RankedFeature) error {
	return errors.SafeExecute("SaveImportanceChart", func() error {
		p, err := ImportancePlot(ranking)
		if err != nil {
			return err
		}
		if err := p.Save(chartWidth, chartHeight, path); err != nil {
			return errors.Wrapf(err, "failed to save chart to %s", path)
		}
		return nil
	})
}
