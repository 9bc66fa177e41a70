package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"

	began "github.com/LdDl/began-go"
	"gorgonia.org/tensor"
)

var (
	faceHeight = 10
	faceWidth  = 9
	faceData   = []float64{
		0, 1, 1, 0, 0, 0, 1, 1, 0,
		0, 1, 1, 0, 0, 0, 1, 1, 0,
		0, 1, 1, 0, 0, 0, 1, 1, 0,
		0, 1, 1, 0, 0, 0, 1, 1, 0,
		0, 0, 0, 0, 1, 0, 0, 0, 0,
		0, 0, 0, 0, 1, 0, 0, 0, 0,
		0, 0, 0, 1, 1, 1, 0, 0, 0,
		1, 1, 0, 0, 0, 0, 0, 1, 1,
		0, 1, 1, 1, 0, 1, 1, 1, 0,
		0, 0, 0, 1, 1, 1, 0, 0, 0,
	}
	imgShape    = began.ImageShape{Channels: 1, Height: 16, Width: 16}
	numFaces    = 64
	numEpoches  = 20
	batchSize   = 8
	seed        = int64(1337)
	outputDir   = "smiley_output"
	printSample = 0
)

// genSyntheticData Puts smiley face at random position of each image. Background is -1, face is 1
func genSyntheticData(rng *rand.Rand, numSamples int) (*began.TrainSet, error) {
	size := imgShape.Height * imgShape.Width
	data := make([]float64, numSamples*size)
	for i := range data {
		data[i] = -1
	}
	for s := 0; s < numSamples; s++ {
		dy := rng.Intn(imgShape.Height - faceHeight + 1)
		dx := rng.Intn(imgShape.Width - faceWidth + 1)
		for y := 0; y < faceHeight; y++ {
			for x := 0; x < faceWidth; x++ {
				if faceData[y*faceWidth+x] > 0 {
					data[s*size+(y+dy)*imgShape.Width+x+dx] = 1
				}
			}
		}
	}
	return began.NewTrainSet(tensor.New(tensor.WithShape(imgShape.Batch(numSamples)...), tensor.WithBacking(data)))
}

func printImage(images *tensor.Dense, idx int) {
	data := images.Data().([]float64)
	size := imgShape.Height * imgShape.Width
	for y := 0; y < imgShape.Height; y++ {
		fmt.Printf("\t")
		for x := 0; x < imgShape.Width; x++ {
			char := "x"
			if data[idx*size+y*imgShape.Width+x] < 0 {
				char = " "
			}
			fmt.Printf("%s ", char)
		}
		fmt.Println()
	}
}

func main() {
	// Initialize seed with constant value to reproduce results
	rng := rand.New(rand.NewSource(seed))

	// Prepare synthetic data
	trainSet, err := genSyntheticData(rng, numFaces)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Println("Actual smiley face:")
	printImage(trainSet.TrainData, printSample)

	cfg := began.DefaultConfig()
	cfg.NumTrain = numFaces
	cfg.Epochs = numEpoches
	cfg.BatchSize = batchSize
	cfg.OutputDir = outputDir
	cfg.ResultDir = outputDir
	cfg.Seed = seed
	cfg.NumSamples = 16
	cfg.VisualizeEvery = numFaces / batchSize
	cfg.CheckpointEvery = 0
	cfg.LearningRate = 1e-3
	cfg.Architecture = began.Architecture{
		Image:           imgShape,
		Filters:         8,
		ZDims:           8,
		HDims:           16,
		MinibatchGroups: 8,
		EncoderNoise:    0.1,
		Blocks:          2,
	}

	trainer, err := began.NewTrainer(cfg, trainSet)
	if err != nil {
		log.Fatalln(err)
	}
	defer trainer.Close()
	trainer.Logger = log.New(os.Stdout, "smiley ", log.LstdFlags)

	err = trainer.Run(context.Background())
	if err != nil {
		log.Fatalln(err)
	}

	// Final test of Generator
	fmt.Println("Start testing generator after final epoch")
	generated, err := trainer.Generate(began.UniformRandDense(rng, batchSize, cfg.Architecture.ZDims))
	if err != nil {
		log.Fatalln(err)
	}
	printImage(generated, 0)
	fmt.Printf("Final k_t: %.6f\n", trainer.State().K)
}
