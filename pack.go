package began

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Image batches are NCHW: [batch, channels, height, width].
// A packed pair keeps the first batch in channels [0, C) and the second one in [C, 2C).
const channelAxis = 1

// PackPair Concatenates two image batches along channel axis: {a, b} => [B, 2C, H, W]
func PackPair(a, b *tensor.Dense) (*tensor.Dense, error) {
	if a.Dims() != 4 {
		return nil, fmt.Errorf("image batch must have 4 dimensions [B, C, H, W], but got %v", a.Shape())
	}
	if !a.Shape().Eq(b.Shape()) {
		return nil, fmt.Errorf("can't pack batches of different shapes %v and %v", a.Shape(), b.Shape())
	}
	packed, err := a.Concat(channelAxis, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concatenate batches along channel axis")
	}
	return packed, nil
}

// SplitPair Recovers both halves of packed pair. Returned tensors don't share memory with packed one.
//
// channels - number of channels of a single half
//
func SplitPair(packed *tensor.Dense, channels int) (*tensor.Dense, *tensor.Dense, error) {
	if err := checkPacked(packed.Shape(), channels); err != nil {
		return nil, nil, err
	}
	first, err := sliceChannels(packed, 0, channels)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't select first half")
	}
	second, err := sliceChannels(packed, channels, 2*channels)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't select second half")
	}
	return first, second, nil
}

func checkPacked(shp tensor.Shape, channels int) error {
	if len(shp) != 4 {
		return fmt.Errorf("packed batch must have 4 dimensions [B, 2C, H, W], but got %v", shp)
	}
	if channels < 1 || shp[channelAxis] != 2*channels {
		return fmt.Errorf("packed batch must have %d channels, but got shape %v", 2*channels, shp)
	}
	return nil
}

func sliceChannels(t *tensor.Dense, from, to int) (*tensor.Dense, error) {
	view, err := t.Slice(nil, gorgonia.S(from, to))
	if err != nil {
		return nil, err
	}
	dense, ok := view.Materialize().(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("can't materialize slice [%d:%d]", from, to)
	}
	// Slicing single channel drops channel axis
	half := dense.Clone().(*tensor.Dense)
	shp := t.Shape()
	if err := half.Reshape(shp[0], to-from, shp[2], shp[3]); err != nil {
		return nil, errors.Wrap(err, "Can't restore channel axis")
	}
	return half, nil
}

// packChannels Graph counterpart of PackPair: {a, b} => [B, 2C, H, W].
// Both halves are concatenated as flat per-sample features, so neither forward nor backward pass
// slices a single channel (slicing single channel drops the axis and breaks convolution gradients).
func packChannels(a, b *gorgonia.Node) (*gorgonia.Node, error) {
	shp := a.Shape()
	if len(shp) != 4 {
		return nil, fmt.Errorf("image batch must have 4 dimensions [B, C, H, W], but got %v", shp)
	}
	if !shp.Eq(b.Shape()) {
		return nil, fmt.Errorf("can't pack batches of different shapes %v and %v", shp, b.Shape())
	}
	features := shp[1] * shp[2] * shp[3]
	flatA, err := gorgonia.Reshape(a, tensor.Shape{shp[0], features})
	if err != nil {
		return nil, errors.Wrap(err, "Can't flatten first half")
	}
	flatB, err := gorgonia.Reshape(b, tensor.Shape{shp[0], features})
	if err != nil {
		return nil, errors.Wrap(err, "Can't flatten second half")
	}
	flat, err := gorgonia.Concat(1, flatA, flatB)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concatenate halves")
	}
	packed, err := gorgonia.Reshape(flat, tensor.Shape{shp[0], 2 * shp[1], shp[2], shp[3]})
	if err != nil {
		return nil, errors.Wrap(err, "Can't restore packed shape")
	}
	return packed, nil
}

// splitChannels Graph counterpart of SplitPair used by losses.
// Halves are returned flattened per sample: [B, C*H*W]. Channel-major layout makes the first C channels
// of packed pair exactly the first C*H*W features of each sample.
func splitChannels(packed *gorgonia.Node, channels int) (*gorgonia.Node, *gorgonia.Node, error) {
	shp := packed.Shape()
	if err := checkPacked(shp, channels); err != nil {
		return nil, nil, err
	}
	features := channels * shp[2] * shp[3]
	flat, err := gorgonia.Reshape(packed, tensor.Shape{shp[0], 2 * features})
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't flatten packed pair")
	}
	first, err := gorgonia.Slice(flat, nil, gorgonia.S(0, features))
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't slice first half")
	}
	second, err := gorgonia.Slice(flat, nil, gorgonia.S(features, 2*features))
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't slice second half")
	}
	return first, second, nil
}
