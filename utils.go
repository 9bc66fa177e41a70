package began

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// UniformRandDense Return reference to tensor.Dense filled with pseudo-random float64 values in range [-1.0,1.0)
//
// rng - source of randomness. Trainer owns one, so runs with the same seed draw the same latent vectors
// batchSize - Simply batch size
// n - Number of elements in each batch (latent space size)
// Resulting dense will have batchSize*n elements
//
func UniformRandDense(rng *rand.Rand, batchSize, n int) *tensor.Dense {
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = rng.Float64()*2.0 - 1.0
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// rowsChunk Copy of rows [from, to) of [N, ...] tensor
func rowsChunk(t *tensor.Dense, from, to int) (*tensor.Dense, error) {
	data, err := float64Data(t)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read rows")
	}
	shp := t.Shape().Clone()
	size := shp.TotalSize() / shp[0]
	if from < 0 || to > shp[0] || from >= to {
		return nil, fmt.Errorf("bad rows range [%d:%d] for %d rows", from, to, shp[0])
	}
	shp[0] = to - from
	chunk := append([]float64(nil), data[from*size:to*size]...)
	return tensor.New(tensor.WithShape(shp...), tensor.WithBacking(chunk)), nil
}

// GenerateSamples Evaluates network over rows of input in chunks of batchSize.
// Every chunk must be handled by forward function built for exactly that batch size; last chunk could be smaller.
//
// latent - [N, ...] latent vectors (Generator) or images (autoencoder)
// forward - picks graph for given chunk size and evaluates it
//
func GenerateSamples(latent *tensor.Dense, batchSize int, forward func(chunk *tensor.Dense) (*tensor.Dense, error)) (*tensor.Dense, error) {
	numSamples := latent.Shape()[0]
	var testSamplesTensor *tensor.Dense
	for start := 0; start < numSamples; start += batchSize {
		end := start + batchSize
		if end > numSamples {
			end = numSamples
		}
		chunk, err := rowsChunk(latent, start, end)
		if err != nil {
			return nil, err
		}
		out, err := forward(chunk)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't evaluate samples [%d:%d]", start, end))
		}
		if testSamplesTensor == nil {
			testSamplesTensor = out
			continue
		}
		testSamplesTensor, err = testSamplesTensor.Concat(0, out)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do concatenation")
		}
	}
	if testSamplesTensor == nil {
		return nil, fmt.Errorf("no samples to evaluate")
	}
	return testSamplesTensor, nil
}
