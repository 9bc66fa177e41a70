package began

import (
	"math/rand"
	"testing"

	"gorgonia.org/tensor"
)

func TestUniformRandDense(t *testing.T) {
	latent := UniformRandDense(rand.New(rand.NewSource(1)), 10, 5)
	if !latent.Shape().Eq(tensor.Shape{10, 5}) {
		t.Fatalf("unexpected shape %v", latent.Shape())
	}
	negative := false
	for _, v := range latent.Data().([]float64) {
		if v < -1 || v >= 1 {
			t.Fatalf("value out of [-1;1): %v", v)
		}
		if v < 0 {
			negative = true
		}
	}
	if !negative {
		t.Errorf("expected some negative values")
	}
	again := UniformRandDense(rand.New(rand.NewSource(1)), 10, 5)
	equalData(t, "same seed", again, latent)
}

func TestGenerateSamplesChunks(t *testing.T) {
	latent := seqDense(0, 5, 2)
	sizes := []int{}
	out, err := GenerateSamples(latent, 2, func(chunk *tensor.Dense) (*tensor.Dense, error) {
		sizes = append(sizes, chunk.Shape()[0])
		if chunk.Dims() != 2 {
			t.Fatalf("chunk lost batch axis: %v", chunk.Shape())
		}
		return chunk, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Fatalf("unexpected chunk sizes %v", sizes)
	}
	equalData(t, "concatenated chunks", out, latent)
}
