package began

import "time"

// Window accumulates losses across steps of a single epoch.
type Window struct {
	steps       int
	samples     int
	genLoss     float64
	disLoss     float64
	genRecon    float64
	realRecon   float64
	convergence float64
	compute     time.Duration
	lastK       float64
}

// Record adds a new measurement to the window.
func (w *Window) Record(batchSize int, computeTime time.Duration, genLoss float64, dis *DiscriminatorStep, k, convergence float64) {
	w.steps++
	w.samples += batchSize
	w.compute += computeTime
	w.genLoss += genLoss
	w.disLoss += dis.Loss
	w.genRecon += mean(dis.GenRecon)
	w.realRecon += mean(dis.RealRecon)
	w.convergence += convergence
	w.lastK = k
}

// Current returns running means without resetting the window.
func (w *Window) Current() Snapshot {
	snap := Snapshot{
		Steps: w.steps,
		K:     w.lastK,
	}
	if w.steps > 0 {
		n := float64(w.steps)
		snap.GenLoss = w.genLoss / n
		snap.DisLoss = w.disLoss / n
		snap.GenRecon = w.genRecon / n
		snap.RealRecon = w.realRecon / n
		snap.Convergence = w.convergence / n
	}
	if w.compute > 0 {
		snap.ImagesPerSec = float64(w.samples) / w.compute.Seconds()
	}
	return snap
}

// Snapshot returns running means and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := w.Current()
	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Epoch        int
	Steps        int
	GenLoss      float64
	DisLoss      float64
	GenRecon     float64
	RealRecon    float64
	Convergence  float64
	K            float64
	ImagesPerSec float64
}
