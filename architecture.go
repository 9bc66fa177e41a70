package began

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Architecture Hyperparameters of default networks topologies
//
// Image - shape of images
// Filters - number of filters in every convolution
// ZDims - latent space size (Generator input)
// HDims - code size (Encoder output, Decoder input)
// MinibatchGroups - number of groups for minibatch discrimination in Encoder. Zero disables it
// EncoderNoise - stddev of gaussian noise added to Encoder input. Zero disables it
// Blocks - number of downsampling blocks in Encoder. Decoder has Blocks-1 upsampling blocks
//
type Architecture struct {
	Image           ImageShape
	Filters         int
	ZDims           int
	HDims           int
	MinibatchGroups int
	EncoderNoise    float64
	Blocks          int
}

// Validate Checks that networks could be built for provided image shape
func (a Architecture) Validate() error {
	if a.Image.Channels < 1 || a.Image.Height < 1 || a.Image.Width < 1 {
		return fmt.Errorf("bad image shape %s", a.Image)
	}
	if a.Filters < 1 || a.ZDims < 1 || a.HDims < 1 {
		return fmt.Errorf("filters (%d), z dims (%d) and h dims (%d) must be positive", a.Filters, a.ZDims, a.HDims)
	}
	if a.Blocks < 1 {
		return fmt.Errorf("number of blocks must be >= 1, but got %d", a.Blocks)
	}
	scale := 1 << uint(a.Blocks)
	if a.Image.Height%scale != 0 || a.Image.Width%scale != 0 {
		return fmt.Errorf("image %dx%d can't be downsampled %d times", a.Image.Height, a.Image.Width, a.Blocks)
	}
	if a.MinibatchGroups < 0 {
		return fmt.Errorf("minibatch groups must be >= 0, but got %d", a.MinibatchGroups)
	}
	if a.MinibatchGroups > 0 && a.encodedFeatures()%a.MinibatchGroups != 0 {
		return fmt.Errorf("encoded features %d are not divisible by %d minibatch groups", a.encodedFeatures(), a.MinibatchGroups)
	}
	if a.EncoderNoise < 0 {
		return fmt.Errorf("encoder noise must be >= 0, but got %f", a.EncoderNoise)
	}
	return nil
}

func (a Architecture) encodedFeatures() int {
	scale := 1 << uint(a.Blocks)
	return a.Filters * (a.Image.Height / scale) * (a.Image.Width / scale)
}

// Build Creates Generator, Encoder and Decoder
func (a Architecture) Build() (Networks, error) {
	if err := a.Validate(); err != nil {
		return Networks{}, errors.Wrap(err, "Bad architecture")
	}
	gen, err := NewDecoderNet("generator", a, a.ZDims)
	if err != nil {
		return Networks{}, err
	}
	enc, err := NewEncoderNet("encoder", a)
	if err != nil {
		return Networks{}, err
	}
	dec, err := NewDecoderNet("decoder", a, a.HDims)
	if err != nil {
		return Networks{}, err
	}
	return Networks{Generator: gen, Encoder: enc, Decoder: dec}, nil
}

func conv3x3(in, out int, activation ActivationFunc) *Layer {
	return &Layer{
		Type:         LayerConvolutional,
		Activation:   activation,
		WeightShape:  tensor.Shape{out, in, 3, 3},
		KernelHeight: 3,
		KernelWidth:  3,
		Padding:      []int{1, 1},
		Stride:       []int{1, 1},
		Dilation:     []int{1, 1},
	}
}

// NewDecoderNet Fully connected projection to [Filters, H/2^(Blocks-1), W/2^(Blocks-1)] followed by
// convolutional blocks with upsampling. Used both for Generator (input = ZDims) and Decoder (input = HDims).
func NewDecoderNet(name string, a Architecture, inputDims int) (*Network, error) {
	baseH := a.Image.Height >> uint(a.Blocks-1)
	baseW := a.Image.Width >> uint(a.Blocks-1)
	projected := a.Filters * baseH * baseW
	layers := []*Layer{
		{
			Type:        LayerLinear,
			Activation:  LeakyRectify,
			WeightShape: tensor.Shape{projected, inputDims},
			BiasShape:   tensor.Shape{1, projected},
		},
		{
			Type:        LayerReshape,
			ReshapeDims: []int{a.Filters, baseH, baseW},
		},
	}
	for i := 0; i < a.Blocks; i++ {
		layers = append(layers, conv3x3(a.Filters, a.Filters, Rectify), conv3x3(a.Filters, a.Filters, Rectify))
		if i < a.Blocks-1 {
			layers = append(layers, &Layer{Type: LayerUpsample, Scale: 2})
		}
	}
	layers = append(layers, conv3x3(a.Filters, a.Image.Channels, nil))
	net, err := NewNetwork(name, layers...)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't define %s", name))
	}
	return net, nil
}

// NewEncoderNet Convolutional blocks with downsampling, flatten, minibatch discrimination and projection to HDims
func NewEncoderNet(name string, a Architecture) (*Network, error) {
	layers := []*Layer{}
	if a.EncoderNoise > 0 {
		layers = append(layers, &Layer{Type: LayerGaussianNoise, Stddev: a.EncoderNoise})
	}
	in := a.Image.Channels
	for i := 0; i < a.Blocks; i++ {
		layers = append(layers,
			conv3x3(in, a.Filters, LeakyRectify),
			conv3x3(a.Filters, a.Filters, nil),
			&Layer{
				Type:         LayerMaxpool,
				Activation:   LeakyRectify,
				KernelHeight: 2,
				KernelWidth:  2,
				Padding:      []int{0, 0},
				Stride:       []int{2, 2},
			},
		)
		in = a.Filters
	}
	layers = append(layers, &Layer{Type: LayerFlatten})
	features := a.encodedFeatures()
	if a.MinibatchGroups > 0 {
		layers = append(layers, &Layer{Type: LayerMinibatchDiscrimination, Groups: a.MinibatchGroups})
		features += a.MinibatchGroups
	}
	layers = append(layers, &Layer{
		Type:        LayerLinear,
		WeightShape: tensor.Shape{a.HDims, features},
		BiasShape:   tensor.Shape{1, a.HDims},
	})
	net, err := NewNetwork(name, layers...)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't define %s", name))
	}
	return net, nil
}
