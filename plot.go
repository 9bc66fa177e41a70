package began

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotHistory Plot per-epoch curves of losses, k_t and convergence measure
func PlotHistory(history []Snapshot, fname string) error {
	if len(history) == 0 {
		return fmt.Errorf("history is empty")
	}
	genLoss := make(plotter.XYs, len(history))
	disLoss := make(plotter.XYs, len(history))
	kt := make(plotter.XYs, len(history))
	convergence := make(plotter.XYs, len(history))
	for i, snap := range history {
		x := float64(snap.Epoch)
		genLoss[i].X, genLoss[i].Y = x, snap.GenLoss
		disLoss[i].X, disLoss[i].Y = x, snap.DisLoss
		kt[i].X, kt[i].Y = x, snap.K
		convergence[i].X, convergence[i].Y = x, snap.Convergence
	}
	p := plot.New()
	p.Title.Text = "BEGAN training"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Value"
	p.Add(plotter.NewGrid())
	err := plotutil.AddLinePoints(p,
		"generator loss", genLoss,
		"discriminator loss", disLoss,
		"k_t", kt,
		"convergence", convergence,
	)
	if err != nil {
		return errors.Wrap(err, "Can't add lines")
	}
	// Save the plot to a PNG file.
	if err := p.Save(8*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}
