package began

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MinibatchDiscrimination Batch similarity statistic.
// Input shape is [batch, groups, features], output shape is [batch, groups]:
//
//	out[i, g] = Σ_j exp(-Σ_f |x[i, g, f] - x[j, g, f]|)
//
// The sum runs over every sample of the batch including i itself. No learnables.
func MinibatchDiscrimination(x *gorgonia.Node) (*gorgonia.Node, error) {
	shp := x.Shape()
	if len(shp) != 3 {
		return nil, fmt.Errorf("minibatch discrimination needs input of shape [batch, groups, features], but got %v", shp)
	}
	batch, groups, features := shp[0], shp[1], shp[2]

	left, err := gorgonia.Reshape(x, tensor.Shape{batch, groups, features, 1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape input to [B, G, F, 1]")
	}
	permuted, err := gorgonia.Transpose(x, 1, 2, 0)
	if err != nil {
		return nil, errors.Wrap(err, "Can't permute input to [G, F, B]")
	}
	right, err := gorgonia.Reshape(permuted, tensor.Shape{1, groups, features, batch})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape permuted input to [1, G, F, B]")
	}
	diffs, err := gorgonia.BroadcastSub(left, right, []byte{3}, []byte{0})
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B) in broadcast term")
	}
	absDiffs, err := gorgonia.Abs(diffs)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do |x|")
	}
	distances, err := gorgonia.Sum(absDiffs, 2)
	if err != nil {
		return nil, errors.Wrap(err, "Can't sum distances along features axis")
	}
	negDistances, err := gorgonia.Neg(distances)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	similarity, err := gorgonia.Exp(negDistances)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do exp(x)")
	}
	stats, err := gorgonia.Sum(similarity, 2)
	if err != nil {
		return nil, errors.Wrap(err, "Can't sum similarity along batch axis")
	}
	return stats, nil
}

// minibatchDiscriminationLayer Splits flat features [B, D] into groups, computes statistic and appends it: [B, D+G]
func minibatchDiscriminationLayer(input *gorgonia.Node, batchSize, groups int) (*gorgonia.Node, error) {
	shp := input.Shape()
	if len(shp) != 2 {
		return nil, fmt.Errorf("minibatch discrimination layer needs flat input [batch, features], but got %v", shp)
	}
	if shp[1]%groups != 0 {
		return nil, fmt.Errorf("features size %d is not divisible by number of groups %d", shp[1], groups)
	}
	grouped, err := gorgonia.Reshape(input, tensor.Shape{batchSize, groups, shp[1] / groups})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape input to [B, G, F]")
	}
	stats, err := MinibatchDiscrimination(grouped)
	if err != nil {
		return nil, err
	}
	return gorgonia.Concat(1, input, stats)
}

// MinibatchFeatures Same statistic as MinibatchDiscrimination but evaluated on dense values directly
func MinibatchFeatures(t *tensor.Dense) (*tensor.Dense, error) {
	shp := t.Shape()
	if len(shp) != 3 {
		return nil, fmt.Errorf("minibatch features need input of shape [batch, groups, features], but got %v", shp)
	}
	data, err := float64Data(t)
	if err != nil {
		return nil, err
	}
	batch, groups, features := shp[0], shp[1], shp[2]
	out := make([]float64, batch*groups)
	for i := 0; i < batch; i++ {
		for g := 0; g < groups; g++ {
			xi := data[(i*groups+g)*features : (i*groups+g+1)*features]
			sum := 0.0
			for j := 0; j < batch; j++ {
				xj := data[(j*groups+g)*features : (j*groups+g+1)*features]
				dist := 0.0
				for f := range xi {
					dist += math.Abs(xi[f] - xj[f])
				}
				sum += math.Exp(-dist)
			}
			out[i*groups+g] = sum
		}
	}
	return tensor.New(tensor.WithShape(batch, groups), tensor.WithBacking(out)), nil
}

// SampleSimilarity Mode collapse indicator for a batch of images in [0;1].
// Images are compared by mean absolute pixel difference using the minibatch statistic;
// 1 means every image of the batch is the same, values near 0 mean images are far apart.
func SampleSimilarity(images *tensor.Dense) (float64, error) {
	shp := images.Shape()
	if len(shp) < 2 {
		return 0, fmt.Errorf("images need batch axis, but got shape %v", shp)
	}
	batch := shp[0]
	if batch < 2 {
		return 1, nil
	}
	data, err := float64Data(images)
	if err != nil {
		return 0, err
	}
	size := len(data) / batch
	scaled := make([]float64, len(data))
	for i := range data {
		scaled[i] = data[i] / float64(size)
	}
	stats, err := MinibatchFeatures(tensor.New(tensor.WithShape(batch, 1, size), tensor.WithBacking(scaled)))
	if err != nil {
		return 0, errors.Wrap(err, "Can't evaluate minibatch features")
	}
	scores := stats.Data().([]float64)
	total := 0.0
	for _, s := range scores {
		// exclude self-similarity exp(0) = 1
		total += (s - 1) / float64(batch-1)
	}
	return total / float64(batch), nil
}

// float64Data Returns contiguous float64 data of dense tensor (materializes views)
func float64Data(t *tensor.Dense) ([]float64, error) {
	if t.IsMaterializable() {
		m, ok := t.Materialize().(*tensor.Dense)
		if !ok {
			return nil, fmt.Errorf("can't materialize tensor of shape %v", t.Shape())
		}
		t = m
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("tensor should hold float64 values, but got %T", t.Data())
	}
	return data, nil
}
