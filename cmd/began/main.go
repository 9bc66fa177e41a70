package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	began "github.com/LdDl/began-go"
	"github.com/pkg/errors"
)

func main() {
	defaults := began.DefaultConfig()

	dataDir := flag.String("data", "", "Folder with training images (required)")
	numTrain := flag.Int("numtrain", defaults.NumTrain, "Max number of training images")
	epochs := flag.Int("epoch", defaults.Epochs, "Number of epochs")
	batchSize := flag.Int("batchsize", defaults.BatchSize, "Batch size")
	outputDir := flag.String("output", defaults.OutputDir, "Folder for sample grids and history plot")
	resultDir := flag.String("result", defaults.ResultDir, "Folder for checkpoints")
	gamma := flag.Float64("gamma", defaults.Gamma, "Equilibrium ratio gamma in [0;1]")
	lambdaK := flag.Float64("lambda_k", defaults.LambdaK, "Gain of k_t controller")
	zDims := flag.Int("z", defaults.Architecture.ZDims, "Latent space size")
	hDims := flag.Int("h", defaults.Architecture.HDims, "Autoencoder code size")
	filters := flag.Int("filters", defaults.Architecture.Filters, "Number of convolution filters")
	width := flag.Int("width", defaults.Architecture.Image.Width, "Image width")
	height := flag.Int("height", defaults.Architecture.Image.Height, "Image height")
	channels := flag.Int("channels", defaults.Architecture.Image.Channels, "Image channels (1 or 3)")
	groups := flag.Int("groups", defaults.Architecture.MinibatchGroups, "Minibatch discrimination groups (0 disables)")
	lr := flag.Float64("lr", defaults.LearningRate, "Adam learning rate")
	beta1 := flag.Float64("beta1", defaults.Beta1, "Adam beta1")
	visualizeEvery := flag.Int("visualize-every", defaults.VisualizeEvery, "Render samples every N batches")
	checkpointEvery := flag.Int("checkpoint-every", defaults.CheckpointEvery, "Save weights every N epochs (0 disables)")
	seed := flag.Int64("seed", defaults.Seed, "PRNG seed")
	graphDir := flag.String("graph-dir", "", "Write composite graphs in dot format to this folder")
	resumeEpoch := flag.Int("resume-epoch", 0, "Load weights saved after this epoch from result folder")

	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		log.Fatalln("-data is required")
	}

	cfg := defaults
	cfg.DataDir = *dataDir
	cfg.NumTrain = *numTrain
	cfg.Epochs = *epochs
	cfg.BatchSize = *batchSize
	cfg.OutputDir = *outputDir
	cfg.ResultDir = *resultDir
	cfg.Gamma = *gamma
	cfg.LambdaK = *lambdaK
	cfg.Architecture.ZDims = *zDims
	cfg.Architecture.HDims = *hDims
	cfg.Architecture.Filters = *filters
	cfg.Architecture.Image = began.ImageShape{Channels: *channels, Height: *height, Width: *width}
	cfg.Architecture.MinibatchGroups = *groups
	cfg.LearningRate = *lr
	cfg.Beta1 = *beta1
	cfg.VisualizeEvery = *visualizeEvery
	cfg.CheckpointEvery = *checkpointEvery
	cfg.Seed = *seed
	cfg.GraphDumpDir = *graphDir

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	trainSet, err := began.LoadImages(cfg.DataDir, cfg.NumTrain, cfg.Architecture.Image, logger)
	if err != nil {
		log.Fatalf("failed to load images: %v", err)
	}
	logger.Printf("data=%s images=%d shape=%s\n", cfg.DataDir, trainSet.DataLength, trainSet.Shape())

	trainer, err := began.NewTrainer(cfg, trainSet)
	if err != nil {
		log.Fatalf("failed to prepare trainer: %v", err)
	}
	defer trainer.Close()
	trainer.Logger = logger
	logger.Printf("generator_params=%d encoder_params=%d decoder_params=%d\n",
		trainer.Networks.Generator.Params().Count(), trainer.Networks.Encoder.Params().Count(), trainer.Networks.Decoder.Params().Count())

	if *resumeEpoch > 0 {
		if err := trainer.Resume(*resumeEpoch); err != nil {
			log.Fatalf("failed to resume: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = trainer.Run(ctx)
	switch {
	case err == nil:
	case errors.Cause(err) == context.Canceled:
		logger.Println("training interrupted")
	case errors.Cause(err) == began.ErrDiverged:
		log.Fatalf("training diverged: %v", err)
	default:
		log.Fatalf("training failed: %v", err)
	}
}
