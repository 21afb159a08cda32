package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// ROCSeries is one model's ROC curve.
type ROCSeries struct {
	Name string
	FPR  []float64
	TPR  []float64
	AUC  float64
}

// SweepPoint is the test accuracy of a k-nearest-neighbours fit with K
// neighbours.
type SweepPoint struct {
	K        int
	Accuracy float64
}

// PlotROC draws every curve on one chart with the chance diagonal and saves
// it to path. The image format follows the file extension.
func PlotROC(path string, curves []ROCSeries) error {
	if len(curves) == 0 {
		return errors.NewValueError("PlotROC", "no curves to plot")
	}
	p := plot.New()
	p.Title.Text = "ROC"
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Left = true
	p.Legend.Top = false

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return errors.Wrap(err, "chance line")
	}
	chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(chance)

	for i, c := range curves {
		if len(c.FPR) != len(c.TPR) {
			return errors.NewShapeMismatchError("PlotROC", len(c.FPR), len(c.TPR), 0)
		}
		pts := make(plotter.XYs, len(c.FPR))
		for k := range c.FPR {
			pts[k].X = c.FPR[k]
			pts[k].Y = c.TPR[k]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "roc line %s", c.Name)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (AUC = %.3f)", c.Name, c.AUC), line)
	}

	return errors.Wrapf(p.Save(6*vg.Inch, 6*vg.Inch, path), "save %s", path)
}

// PlotKNNSweep draws test accuracy against the neighbour count.
func PlotKNNSweep(path string, sweep []SweepPoint) error {
	if len(sweep) == 0 {
		return errors.NewValueError("PlotKNNSweep", "no sweep points to plot")
	}
	p := plot.New()
	p.Title.Text = "KNN accuracy by number of neighbours"
	p.X.Label.Text = "K"
	p.Y.Label.Text = "Testing Accuracy"

	pts := make(plotter.XYs, len(sweep))
	for i, s := range sweep {
		pts[i].X = float64(s.K)
		pts[i].Y = s.Accuracy
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return errors.Wrap(err, "sweep line")
	}
	line.Color = plotutil.Color(0)
	points.Color = plotutil.Color(0)
	p.Add(line, points, plotter.NewGrid())

	return errors.Wrapf(p.Save(6*vg.Inch, 4*vg.Inch, path), "save %s", path)
}
