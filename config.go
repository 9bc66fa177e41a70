package began

import (
	"fmt"

	"github.com/pkg/errors"
)

// Config Options of training run
//
// DataDir - folder with training images
// NumTrain - max number of images to load
// Epochs - number of passes over training set
// BatchSize - number of images per step
// OutputDir - folder for sample grids and history plot
// ResultDir - folder for checkpoints
// Gamma, LambdaK - equilibrium controller constants
// LearningRate, Beta1 - Adam parameters, same for both phases
// VisualizeEvery - render samples every N batches (and on last batch of each epoch)
// CheckpointEvery - save weights every N epochs. Zero disables checkpoints
// NumSamples - number of fixed latent vectors and real images used for visualization
// Seed - seed for latent sampling and shuffling
// GraphDumpDir - if not empty, composite graphs are written there in Graphviz dot format
//
type Config struct {
	DataDir   string
	NumTrain  int
	Epochs    int
	BatchSize int
	OutputDir string
	ResultDir string

	Gamma   float64
	LambdaK float64

	Architecture Architecture

	LearningRate float64
	Beta1        float64

	VisualizeEvery  int
	CheckpointEvery int
	NumSamples      int
	Seed            int64
	GraphDumpDir    string
}

// DefaultConfig Returns defaults for 64x64 RGB images
func DefaultConfig() Config {
	return Config{
		NumTrain:  60000,
		Epochs:    100,
		BatchSize: 50,
		OutputDir: "output",
		ResultDir: "result",
		Gamma:     0.5,
		LambdaK:   0.001,
		Architecture: Architecture{
			Image:           ImageShape{Channels: 3, Height: 64, Width: 64},
			Filters:         128,
			ZDims:           50,
			HDims:           2048,
			MinibatchGroups: 256,
			EncoderNoise:    0.5,
			Blocks:          4,
		},
		LearningRate:    2.0e-4,
		Beta1:           0.5,
		VisualizeEvery:  500,
		CheckpointEvery: 5,
		NumSamples:      100,
		Seed:            1,
	}
}

// Controller Equilibrium controller defined by config
func (c Config) Controller() Controller {
	return Controller{Gamma: c.Gamma, LambdaK: c.LambdaK}
}

// Validate Checks that run could be started. DataDir is not checked since training set could be provided directly.
func (c Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("number of epochs must be >= 1, but got %d", c.Epochs)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be >= 1, but got %d", c.BatchSize)
	}
	if c.NumTrain < 0 {
		return fmt.Errorf("number of training images must be >= 0, but got %d", c.NumTrain)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be > 0, but got %f", c.LearningRate)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 {
		return fmt.Errorf("beta1 must be in [0;1), but got %f", c.Beta1)
	}
	if c.VisualizeEvery < 1 {
		return fmt.Errorf("visualization period must be >= 1, but got %d", c.VisualizeEvery)
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint period must be >= 0, but got %d", c.CheckpointEvery)
	}
	if c.NumSamples < 1 {
		return fmt.Errorf("number of samples must be >= 1, but got %d", c.NumSamples)
	}
	if err := c.Controller().Validate(); err != nil {
		return errors.Wrap(err, "Bad controller")
	}
	if err := c.Architecture.Validate(); err != nil {
		return errors.Wrap(err, "Bad architecture")
	}
	return nil
}
