package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// EpochStats is one epoch of training history.
type EpochStats struct {
	Epoch       int     `json:"epoch"`
	Loss        float64 `json:"loss"`
	ValAccuracy float64 `json:"val_accuracy"`
	Checkpoint  string  `json:"checkpoint,omitempty"`
}

// PlotHistory draws average training loss (red) and validation accuracy
// (blue) per epoch. The image format follows the file extension.
func PlotHistory(path, title string, history []EpochStats) error {
	if len(history) == 0 {
		return errors.New("no history to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "value"

	loss := make(plotter.XYs, len(history))
	acc := make(plotter.XYs, len(history))
	for i, h := range history {
		loss[i] = plotter.XY{X: float64(h.Epoch), Y: h.Loss}
		acc[i] = plotter.XY{X: float64(h.Epoch), Y: h.ValAccuracy}
	}

	lossLine, err := plotter.NewLine(loss)
	if err != nil {
		return err
	}
	lossLine.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	lossLine.Width = vg.Points(1.2)
	p.Add(lossLine)
	p.Legend.Add("train loss", lossLine)

	accLine, err := plotter.NewLine(acc)
	if err != nil {
		return err
	}
	accLine.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	accLine.Width = vg.Points(1.2)
	p.Add(accLine)
	p.Legend.Add("validation accuracy", accLine)

	// Checkpointed epochs as points on the accuracy curve.
	var marks plotter.XYs
	for _, h := range history {
		if h.Checkpoint != "" {
			marks = append(marks, plotter.XY{X: float64(h.Epoch), Y: h.ValAccuracy})
		}
	}
	if len(marks) > 0 {
		sc, err := plotter.NewScatter(marks)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
		p.Legend.Add("checkpoint", sc)
	}

	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
