package logger

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotName is the name of the PlotWriter
const PlotName = "plot"

// PlotWriter keeps the history of each key and saves one PNG line
// plot per key when closed
type PlotWriter struct {
	dir    string
	series map[string]plotter.XYs
}

// NewPlotWriter returns a new PlotWriter which saves its plots in dir
func NewPlotWriter(dir string) (*PlotWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &PlotWriter{dir: dir, series: make(map[string]plotter.XYs)}, nil
}

// Name implements the Writer interface
func (p *PlotWriter) Name() string {
	return PlotName
}

// Write implements the Writer interface
func (p *PlotWriter) Write(step int, keys []string,
	values map[string]float64) error {
	for _, key := range keys {
		v := values[key]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		p.series[key] = append(p.series[key], plotter.XY{
			X: float64(step),
			Y: v,
		})
	}
	return nil
}

// Filename returns the file the plot of key is saved to
func (p *PlotWriter) Filename(key string) string {
	return filepath.Join(p.dir, strings.ReplaceAll(key, "/", "_")+".png")
}

// Close implements the Writer interface
func (p *PlotWriter) Close() error {
	keys := make([]string, 0, len(p.series))
	for key := range p.series {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := p.save(key, p.series[key]); err != nil {
			return fmt.Errorf("close: could not plot %v: %w", key, err)
		}
	}
	return nil
}

func (p *PlotWriter) save(key string, xys plotter.XYs) error {
	plt := plot.New()
	plt.Title.Text = key
	plt.X.Label.Text = "step"
	plt.Add(plotter.NewGrid())

	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	plt.Add(line)

	return plt.Save(6*vg.Inch, 4*vg.Inch, p.Filename(key))
}
