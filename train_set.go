package began

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// TrainSet Normalized images in NCHW layout, values in [-1;1]
type TrainSet struct {
	TrainData  *tensor.Dense
	DataLength int
}

// NewTrainSet Wraps [N, C, H, W] tensor
func NewTrainSet(data *tensor.Dense) (*TrainSet, error) {
	if data.Dims() != 4 {
		return nil, fmt.Errorf("train data must have 4 dimensions [N, C, H, W], but got %v", data.Shape())
	}
	return &TrainSet{
		TrainData:  data,
		DataLength: data.Shape()[0],
	}, nil
}

// Shape Shape of single image
func (ts *TrainSet) Shape() ImageShape {
	shp := ts.TrainData.Shape()
	return ImageShape{Channels: shp[1], Height: shp[2], Width: shp[3]}
}

// Batch Gathers images with given indices into new [len(indices), C, H, W] tensor
func (ts *TrainSet) Batch(indices []int) (*tensor.Dense, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("can't gather empty batch")
	}
	shape := ts.Shape()
	size := shape.Channels * shape.Height * shape.Width
	src := ts.TrainData.Data().([]float64)
	data := make([]float64, 0, len(indices)*size)
	for _, idx := range indices {
		if idx < 0 || idx >= ts.DataLength {
			return nil, fmt.Errorf("index %d is out of range [0;%d)", idx, ts.DataLength)
		}
		data = append(data, src[idx*size:(idx+1)*size]...)
	}
	return tensor.New(tensor.WithShape(shape.Batch(len(indices))...), tensor.WithBacking(data)), nil
}

// Head First n images (or every image when n exceeds DataLength)
func (ts *TrainSet) Head(n int) (*tensor.Dense, error) {
	if n > ts.DataLength {
		n = ts.DataLength
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	batch, err := ts.Batch(indices)
	if err != nil {
		return nil, errors.Wrap(err, "Can't select first images")
	}
	return batch, nil
}

// Permutation Random order of images for single epoch
func (ts *TrainSet) Permutation(rng *rand.Rand) []int {
	return rng.Perm(ts.DataLength)
}

// Batches Splits permutation into consecutive batches. Last batch could be smaller.
func Batches(permutation []int, batchSize int) [][]int {
	batches := make([][]int, 0, (len(permutation)+batchSize-1)/batchSize)
	for start := 0; start < len(permutation); start += batchSize {
		end := start + batchSize
		if end > len(permutation) {
			end = len(permutation)
		}
		batches = append(batches, permutation[start:end])
	}
	return batches
}
