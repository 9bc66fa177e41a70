package began

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ErrDiverged Loss became NaN or Inf
var ErrDiverged = errors.New("training diverged")

// Trainer Alternates autoencoder and Generator steps, keeps equilibrium state between them
//
// Logger - destination of progress lines
// Visualizer - renders fixed samples periodically. Could be nil
// Checkpointer - saves weights every Config.CheckpointEvery epochs. Could be nil
// History - per-epoch summaries
//
type Trainer struct {
	Config       Config
	Networks     Networks
	Data         *TrainSet
	Logger       *log.Logger
	Visualizer   Visualizer
	Checkpointer Checkpointer
	History      []Snapshot

	controller Controller
	state      EquilibriumState
	startEpoch int
	rng        *rand.Rand

	genSolver     gorgonia.Solver
	disSolver     gorgonia.Solver
	genComposites map[int]*GeneratorComposite
	disComposites map[int]*DiscriminatorComposite

	latentSamples *tensor.Dense
	realSamples   *tensor.Dense
	lastFake      *tensor.Dense
}

// NewTrainer Builds networks from cfg.Architecture and prepares fixed samples for visualization
func NewTrainer(cfg Config, data *TrainSet) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Bad config")
	}
	if data == nil || data.DataLength == 0 {
		return nil, fmt.Errorf("training set is empty")
	}
	if data.Shape() != cfg.Architecture.Image {
		return nil, fmt.Errorf("training images are %s, but architecture expects %s", data.Shape(), cfg.Architecture.Image)
	}
	nets, err := cfg.Architecture.Build()
	if err != nil {
		return nil, errors.Wrap(err, "Can't build networks")
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	realSamples, err := data.Head(cfg.NumSamples)
	if err != nil {
		return nil, err
	}
	return &Trainer{
		Config:        cfg,
		Networks:      nets,
		Data:          data,
		Logger:        log.New(os.Stdout, "", log.LstdFlags),
		Visualizer:    NewGridRenderer(cfg.OutputDir),
		Checkpointer:  GobCheckpointer{},
		controller:    cfg.Controller(),
		rng:           rng,
		genSolver:     gorgonia.NewAdamSolver(gorgonia.WithLearnRate(cfg.LearningRate), gorgonia.WithBeta1(cfg.Beta1)),
		disSolver:     gorgonia.NewAdamSolver(gorgonia.WithLearnRate(cfg.LearningRate), gorgonia.WithBeta1(cfg.Beta1)),
		genComposites: make(map[int]*GeneratorComposite),
		disComposites: make(map[int]*DiscriminatorComposite),
		latentSamples: UniformRandDense(rng, cfg.NumSamples, cfg.Architecture.ZDims),
		realSamples:   realSamples,
	}, nil
}

// State Current equilibrium state
func (t *Trainer) State() EquilibriumState {
	return t.state
}

// Resume Loads weights saved after given epoch from Config.ResultDir. Training continues from the next epoch.
// Equilibrium state and optimizer moments are not persisted, so they start over.
func (t *Trainer) Resume(epoch int) error {
	groups := map[string]*ParamGroup{
		"generator": t.Networks.Generator.Params(),
		"encoder":   t.Networks.Encoder.Params(),
		"decoder":   t.Networks.Decoder.Params(),
	}
	for name, group := range groups {
		if err := LoadParams(group, CheckpointPath(t.Config.ResultDir, name, epoch)); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't resume %s", name))
		}
	}
	t.startEpoch = epoch
	t.Logger.Printf("resumed epoch=%d result=%s\n", epoch, t.Config.ResultDir)
	return nil
}

// composites Returns pair of composites for given batch size, defining them on first use
func (t *Trainer) composites(batchSize int) (*GeneratorComposite, *DiscriminatorComposite, error) {
	gc, okGen := t.genComposites[batchSize]
	dc, okDis := t.disComposites[batchSize]
	if okGen && okDis {
		return gc, dc, nil
	}
	arch := t.Config.Architecture
	gc, err := NewGeneratorComposite(t.Networks, arch.Image, arch.ZDims, batchSize, t.genSolver)
	if err != nil {
		return nil, nil, errors.Wrap(err, fmt.Sprintf("Can't define Generator composite for batch size %d", batchSize))
	}
	dc, err = NewDiscriminatorComposite(t.Networks, arch.Image, batchSize, t.disSolver)
	if err != nil {
		gc.Close()
		return nil, nil, errors.Wrap(err, fmt.Sprintf("Can't define autoencoder composite for batch size %d", batchSize))
	}
	t.genComposites[batchSize] = gc
	t.disComposites[batchSize] = dc
	if t.Config.GraphDumpDir != "" {
		if err := t.dumpGraphs(gc, dc); err != nil {
			t.Logger.Printf("graph dump failed: %s\n", err.Error())
		}
	}
	return gc, dc, nil
}

func (t *Trainer) dumpGraphs(gc *GeneratorComposite, dc *DiscriminatorComposite) error {
	if err := os.MkdirAll(t.Config.GraphDumpDir, 0755); err != nil {
		return errors.Wrap(err, "Can't create folder for graphs")
	}
	genFile := filepath.Join(t.Config.GraphDumpDir, fmt.Sprintf("generator_composite_%d.dot", gc.BatchSize()))
	if err := ioutil.WriteFile(genFile, []byte(gc.ToDot()), 0644); err != nil {
		return errors.Wrap(err, "Can't write Generator composite graph")
	}
	disFile := filepath.Join(t.Config.GraphDumpDir, fmt.Sprintf("discriminator_composite_%d.dot", dc.BatchSize()))
	if err := ioutil.WriteFile(disFile, []byte(dc.ToDot()), 0644); err != nil {
		return errors.Wrap(err, "Can't write autoencoder composite graph")
	}
	return nil
}

// Run Trains for Config.Epochs epochs. When ctx is done, training stops after current batch and ctx.Err() is returned.
func (t *Trainer) Run(ctx context.Context) error {
	for epoch := t.startEpoch + 1; epoch <= t.Config.Epochs; epoch++ {
		if err := t.runEpoch(ctx, epoch); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer) runEpoch(ctx context.Context, epoch int) error {
	st := time.Now()
	var window Window
	batches := Batches(t.Data.Permutation(t.rng), t.Config.BatchSize)
	batchEnd := 0
	for b, indices := range batches {
		select {
		case <-ctx.Done():
			t.Logger.Printf("interrupted epoch=%d batch=%d k_t=%.6f\n", epoch, batchEnd, t.state.K)
			return ctx.Err()
		default:
		}
		if err := t.step(epoch, batchEnd, indices, &window); err != nil {
			return err
		}
		batchEnd += len(indices)
		if (b+1)%t.Config.VisualizeEvery == 0 || b == len(batches)-1 {
			snap := window.Current()
			t.Logger.Printf("epoch=%d done=%.2f%% gen_loss=%.6f dis_loss=%.6f k_t=%.6f convergence=%.6f\n",
				epoch, 100.0*float64(batchEnd)/float64(t.Data.DataLength), snap.GenLoss, snap.DisLoss, snap.K, snap.Convergence)
			t.visualize(epoch, batchEnd)
		}
	}
	snap := window.Snapshot()
	snap.Epoch = epoch
	diversity := math.NaN()
	if t.lastFake != nil {
		if v, err := SampleSimilarity(t.lastFake); err != nil {
			t.Logger.Printf("diversity evaluation failed: %s\n", err.Error())
		} else {
			diversity = v
		}
	}
	t.History = append(t.History, snap)
	t.Logger.Printf("epoch=%d gen_loss=%.6f dis_loss=%.6f gen_recon=%.6f real_recon=%.6f k_t=%.6f convergence=%.6f diversity=%.4f images_per_sec=%.1f duration=%s\n",
		epoch, snap.GenLoss, snap.DisLoss, snap.GenRecon, snap.RealRecon, snap.K, snap.Convergence, diversity, snap.ImagesPerSec, time.Since(st))
	if t.Config.OutputDir != "" {
		if err := os.MkdirAll(t.Config.OutputDir, 0755); err == nil {
			err = PlotHistory(t.History, filepath.Join(t.Config.OutputDir, "history.png"))
			if err != nil {
				t.Logger.Printf("history plot failed: %s\n", err.Error())
			}
		}
	}
	if t.Config.CheckpointEvery > 0 && epoch%t.Config.CheckpointEvery == 0 {
		t.checkpoint(epoch)
	}
	return nil
}

// step Single training step: autoencoder on {generated, real}, controller transition, Generator on the same latent vectors
func (t *Trainer) step(epoch, batchStart int, indices []int, window *Window) error {
	st := time.Now()
	batchSize := len(indices)
	gen, dis, err := t.composites(batchSize)
	if err != nil {
		return err
	}
	latent := UniformRandDense(t.rng, batchSize, t.Config.Architecture.ZDims)
	fake, err := gen.Generate(latent)
	if err != nil {
		return errors.Wrap(err, "Can't generate images")
	}
	realBatch, err := t.Data.Batch(indices)
	if err != nil {
		return errors.Wrap(err, "Can't gather real images")
	}
	packed, err := PackPair(fake, realBatch)
	if err != nil {
		return errors.Wrap(err, "Can't pack batch")
	}
	disStep, err := dis.TrainStep(packed, t.state)
	if err != nil {
		return err
	}
	if !isFinite(disStep.Loss) {
		return errors.Wrap(ErrDiverged, fmt.Sprintf("epoch=%d batch=%d dis_loss=%f", epoch, batchStart, disStep.Loss))
	}
	meanGen, meanReal := mean(disStep.GenRecon), mean(disStep.RealRecon)
	next := t.controller.Next(t.state, meanGen, meanReal)
	genLoss, err := gen.TrainStep(latent)
	if err != nil {
		return err
	}
	if !isFinite(genLoss) {
		return errors.Wrap(ErrDiverged, fmt.Sprintf("epoch=%d batch=%d gen_loss=%f", epoch, batchStart, genLoss))
	}
	t.state = next
	t.lastFake = fake
	convergence := t.controller.Convergence(meanGen, meanReal)
	window.Record(batchSize, time.Since(st), genLoss, disStep, t.state.K, convergence)
	return nil
}

// Generate Runs Generator over latent vectors [N, z] using composites of the trainer
func (t *Trainer) Generate(latent *tensor.Dense) (*tensor.Dense, error) {
	return GenerateSamples(latent, t.Config.BatchSize, func(chunk *tensor.Dense) (*tensor.Dense, error) {
		gen, _, err := t.composites(chunk.Shape()[0])
		if err != nil {
			return nil, err
		}
		return gen.Generate(chunk)
	})
}

// Reconstruct Runs autoencoder over images [N, C, H, W] using composites of the trainer
func (t *Trainer) Reconstruct(images *tensor.Dense) (*tensor.Dense, error) {
	return GenerateSamples(images, t.Config.BatchSize, func(chunk *tensor.Dense) (*tensor.Dense, error) {
		_, dis, err := t.composites(chunk.Shape()[0])
		if err != nil {
			return nil, err
		}
		return dis.Reconstruct(chunk)
	})
}

func (t *Trainer) visualize(epoch, batchEnd int) {
	if t.Visualizer == nil {
		return
	}
	generated, err := t.Generate(t.latentSamples)
	if err != nil {
		t.Logger.Printf("sampling failed: %s\n", err.Error())
	} else if err := t.Visualizer.Render(VisualizationGenerator, generated, epoch, batchEnd); err != nil {
		t.Logger.Printf("rendering of generated images failed: %s\n", err.Error())
	}
	reconstructed, err := t.Reconstruct(t.realSamples)
	if err != nil {
		t.Logger.Printf("reconstruction failed: %s\n", err.Error())
	} else if err := t.Visualizer.Render(VisualizationDiscriminator, reconstructed, epoch, batchEnd); err != nil {
		t.Logger.Printf("rendering of reconstructions failed: %s\n", err.Error())
	}
}

func (t *Trainer) checkpoint(epoch int) {
	if t.Checkpointer == nil {
		return
	}
	nets := []struct {
		name string
		net  *Network
	}{
		{"generator", t.Networks.Generator},
		{"encoder", t.Networks.Encoder},
		{"decoder", t.Networks.Decoder},
	}
	for _, n := range nets {
		path := CheckpointPath(t.Config.ResultDir, n.name, epoch)
		if err := t.Checkpointer.Save(n.net.Params(), path); err != nil {
			t.Logger.Printf("checkpoint failed network=%s epoch=%d: %s\n", n.name, epoch, err.Error())
			continue
		}
		t.Logger.Printf("weights saved network=%s epoch=%d path=%s\n", n.name, epoch, path)
	}
}

// Close Releases every composite
func (t *Trainer) Close() error {
	var first error
	for _, gc := range t.genComposites {
		if err := gc.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, dc := range t.disComposites {
		if err := dc.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
