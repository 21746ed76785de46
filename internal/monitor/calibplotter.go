// Package monitor renders QA plots of collected calibration statistics,
// so a pass can be inspected before its output is attached to the next
// one.
package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/flowvec/internal/profile"
)

// CalibrationPlotter writes per-step calibration plots as PNG files under
// an output directory.
type CalibrationPlotter struct {
	outputDir string
}

// NewCalibrationPlotter creates a plotter writing under outputDir. The
// directory is created on first use.
func NewCalibrationPlotter(outputDir string) *CalibrationPlotter {
	return &CalibrationPlotter{outputDir: outputDir}
}

// OutputDir returns the configured output directory.
func (cp *CalibrationPlotter) OutputDir() string { return cp.outputDir }

// PlotStep renders the calibration records of one step. Component records
// produce a mean and a width plot with one line per harmonic component;
// channel records produce a mean-weight-per-channel plot with one line
// per event-class bin. Returns the number of plot files written.
func (cp *CalibrationPlotter) PlotStep(config, step string, records []profile.BinRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(cp.outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	var components, channels []profile.BinRecord
	for _, r := range records {
		switch r.Kind {
		case profile.KindComponents:
			components = append(components, r)
		case profile.KindChannel:
			channels = append(channels, r)
		}
	}

	written := 0
	prefix := plotFileName(config, step)

	if len(components) > 0 {
		n, err := cp.plotComponents(prefix, config, step, components)
		if err != nil {
			return written, err
		}
		written += n
	}
	if len(channels) > 0 {
		n, err := cp.plotChannels(prefix, config, step, channels)
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// plotComponents renders one mean and one width plot, with the
// event-class bins on the x axis and one line per harmonic component.
func (cp *CalibrationPlotter) plotComponents(prefix, config, step string, records []profile.BinRecord) (int, error) {
	keys := sortedBinKeys(records)
	keyIndex := make(map[string]int, len(keys))
	for i, k := range keys {
		keyIndex[k] = i
	}

	// component label ("h2 x") -> bin index -> record
	type point struct{ mean, width float64 }
	series := make(map[string]map[int]point)
	for _, r := range records {
		label := fmt.Sprintf("h%d %s", r.Harmonic, r.Axis)
		if series[label] == nil {
			series[label] = make(map[int]point)
		}
		series[label][keyIndex[r.BinKey]] = point{mean: r.Mean(), width: r.Width()}
	}

	var labels []string
	for label := range series {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	pMean := newBinPlot(fmt.Sprintf("%s / %s - mean", config, step), keys)
	pWidth := newBinPlot(fmt.Sprintf("%s / %s - width", config, step), keys)

	for i, label := range labels {
		meanPts := make(plotter.XYs, 0, len(keys))
		widthPts := make(plotter.XYs, 0, len(keys))
		for bin := 0; bin < len(keys); bin++ {
			pt, ok := series[label][bin]
			if !ok {
				continue
			}
			meanPts = append(meanPts, plotter.XY{X: float64(bin), Y: pt.mean})
			widthPts = append(widthPts, plotter.XY{X: float64(bin), Y: pt.width})
		}
		if err := addLine(pMean, label, meanPts, i); err != nil {
			return 0, err
		}
		if err := addLine(pWidth, label, widthPts, i); err != nil {
			return 0, err
		}
	}

	meanFile := filepath.Join(cp.outputDir, prefix+"_mean.png")
	if err := pMean.Save(10*vg.Inch, 5*vg.Inch, meanFile); err != nil {
		return 0, fmt.Errorf("save mean plot: %w", err)
	}
	widthFile := filepath.Join(cp.outputDir, prefix+"_width.png")
	if err := pWidth.Save(10*vg.Inch, 5*vg.Inch, widthFile); err != nil {
		return 1, fmt.Errorf("save width plot: %w", err)
	}
	return 2, nil
}

// plotChannels renders the mean channel weight versus channel id, one
// line per event-class bin.
func (cp *CalibrationPlotter) plotChannels(prefix, config, step string, records []profile.BinRecord) (int, error) {
	keys := sortedBinKeys(records)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s / %s - channel means", config, step)
	p.X.Label.Text = "channel"
	p.Y.Label.Text = "mean weight"
	p.Legend.Top = true

	for i, key := range keys {
		var pts plotter.XYs
		for _, r := range records {
			if r.BinKey != key {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(r.Channel), Y: r.Mean()})
		}
		sort.Slice(pts, func(a, b int) bool { return pts[a].X < pts[b].X })
		if err := addLine(p, "bin "+key, pts, i); err != nil {
			return 0, err
		}
	}

	file := filepath.Join(cp.outputDir, prefix+"_channels.png")
	if err := p.Save(10*vg.Inch, 5*vg.Inch, file); err != nil {
		return 0, fmt.Errorf("save channel plot: %w", err)
	}
	return 1, nil
}

func newBinPlot(title string, keys []string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "event-class bin"
	p.Y.Label.Text = "value"
	p.Legend.Top = true
	p.NominalX(keys...)
	return p
}

func addLine(p *plot.Plot, label string, pts plotter.XYs, i int) error {
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(i)
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}

func sortedBinKeys(records []profile.BinRecord) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, r := range records {
		if !seen[r.BinKey] {
			seen[r.BinKey] = true
			keys = append(keys, r.BinKey)
		}
	}
	sort.Strings(keys)
	return keys
}

// plotFileName builds a filesystem-safe file prefix from the
// configuration and step names.
func plotFileName(config, step string) string {
	s := strings.ToLower(config + "_" + step)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	return strings.Trim(s, "_")
}
