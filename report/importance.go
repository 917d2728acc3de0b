// Package report renders charts of a trained model.
package report

import (
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

// MaxFeatures is the number of bars drawn by FeatureImportancePlot.
const MaxFeatures = 20

// FeatureImportancePlot saves a horizontal bar chart of the MaxFeatures most
// important features to path. The image format follows the file extension
// (png, svg, pdf, ...); the most important feature is drawn on top.
func FeatureImportancePlot(names []string, importances []float64, path string) error {
	if len(names) != len(importances) {
		return errors.NewDimensionError("FeatureImportancePlot", len(names), len(importances), 0)
	}
	if len(names) == 0 {
		return errors.NewModelError("FeatureImportancePlot", "empty data", errors.ErrEmptyData)
	}
	if filepath.Ext(path) == "" {
		return errors.NewValueError("FeatureImportancePlot", "path needs an image extension: "+path)
	}

	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return importances[order[a]] > importances[order[b]]
	})
	if len(order) > MaxFeatures {
		order = order[:MaxFeatures]
	}

	// bottom-up: the last bar is drawn at the top
	n := len(order)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i, idx := range order {
		values[n-1-i] = importances[idx]
		labels[n-1-i] = names[idx]
	}

	p := plot.New()
	p.Title.Text = "Feature importance"
	p.X.Label.Text = "Mean impurity decrease"

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "build bar chart")
	}
	bars.Horizontal = true
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(labels...)

	height := vg.Length(n)*vg.Points(18) + 1.5*vg.Inch
	width := 6*vg.Inch + vg.Length(longest(labels))*vg.Points(4)
	if err := p.Save(width, height, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

func longest(labels []string) int {
	m := 0
	for _, l := range labels {
		if n := len([]rune(strings.TrimSpace(l))); n > m {
			m = n
		}
	}
	return m
}
