package began

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Description of a single step of feedforward: type, activation and hyperparameters.
// Layer holds no values: weights and biases live in network's ParamGroup and being bound to a graph on demand.
//
// WeightShape - shape of weights. Linear layers expect [out, in], convolutional layers expect [filters, channels, kernelHeight, kernelWidth]
// BiasShape - shape of bias (linear layers only). Should be [1, out]
// ReshapeDims - target shape for LayerReshape without batch axis
// Scale - scale factor for LayerUpsample
// Probability - drop probability for LayerDropout
// Stddev - standard deviation of additive noise for LayerGaussianNoise
// Groups - number of channel groups for LayerMinibatchDiscrimination
//
type Layer struct {
	Type       LayerType
	Activation ActivationFunc
	Options    Options

	WeightShape tensor.Shape
	BiasShape   tensor.Shape

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int
	ReshapeDims  []int

	Scale       int
	Probability float64
	Stddev      float64
	Groups      int
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerMaxpool
	LayerReshape
	LayerUpsample
	LayerDropout
	LayerGaussianNoise
	LayerMinibatchDiscrimination
)

func (lt LayerType) String() string {
	switch lt {
	case LayerLinear:
		return "linear"
	case LayerFlatten:
		return "flatten"
	case LayerConvolutional:
		return "conv2d"
	case LayerMaxpool:
		return "maxpool2d"
	case LayerReshape:
		return "reshape"
	case LayerUpsample:
		return "upsample2d"
	case LayerDropout:
		return "dropout"
	case LayerGaussianNoise:
		return "gaussian_noise"
	case LayerMinibatchDiscrimination:
		return "minibatch_discrimination"
	default:
		return fmt.Sprintf("layer_type_%d", uint16(lt))
	}
}

var (
	allowedNoWeights = []LayerType{LayerMaxpool, LayerFlatten, LayerReshape, LayerUpsample, LayerDropout, LayerGaussianNoise, LayerMinibatchDiscrimination}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// validate Checks that layer's hyperparameters are consistent with its type
func (l *Layer) validate() error {
	if l == nil {
		return fmt.Errorf("layer is nil")
	}
	switch l.Type {
	case LayerLinear:
		if len(l.WeightShape) != 2 {
			return fmt.Errorf("linear layer needs weight shape [out, in], but got %v", l.WeightShape)
		}
		if l.BiasShape != nil && (len(l.BiasShape) != 2 || l.BiasShape[0] != 1 || l.BiasShape[1] != l.WeightShape[0]) {
			return fmt.Errorf("linear layer needs bias shape [1, %d], but got %v", l.WeightShape[0], l.BiasShape)
		}
	case LayerConvolutional:
		if len(l.WeightShape) != 4 {
			return fmt.Errorf("convolutional layer needs weight shape [filters, channels, h, w], but got %v", l.WeightShape)
		}
		if l.WeightShape[2] != l.KernelHeight || l.WeightShape[3] != l.KernelWidth {
			return fmt.Errorf("convolutional layer kernel %dx%d doesn't match weight shape %v", l.KernelHeight, l.KernelWidth, l.WeightShape)
		}
		if l.BiasShape != nil {
			return fmt.Errorf("convolutional layer doesn't support bias")
		}
	case LayerMaxpool:
		if l.KernelHeight <= 0 || l.KernelWidth <= 0 {
			return fmt.Errorf("maxpool layer needs positive kernel, but got %dx%d", l.KernelHeight, l.KernelWidth)
		}
	case LayerReshape:
		if len(l.ReshapeDims) == 0 {
			return fmt.Errorf("reshape layer needs target dims")
		}
	case LayerUpsample:
		if l.Scale < 1 {
			return fmt.Errorf("upsample layer needs scale >= 1, but got %d", l.Scale)
		}
	case LayerDropout:
		if l.Probability < 0 || l.Probability >= 1 {
			return fmt.Errorf("dropout probability should be in [0;1), but got %f", l.Probability)
		}
	case LayerGaussianNoise:
		if l.Stddev < 0 {
			return fmt.Errorf("gaussian noise stddev should be >= 0, but got %f", l.Stddev)
		}
	case LayerMinibatchDiscrimination:
		if l.Groups < 1 {
			return fmt.Errorf("minibatch discrimination needs groups >= 1, but got %d", l.Groups)
		}
	case LayerFlatten:
	default:
		return fmt.Errorf("layer type '%d' (uint16) is not handled", l.Type)
	}
	if noWeightsAllowed(l.Type) && (l.WeightShape != nil || l.BiasShape != nil) {
		return fmt.Errorf("%s layer can't have weights", l.Type)
	}
	return nil
}

// boundLayer Layer instantiated on certain graph
type boundLayer struct {
	*Layer
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
}

// Fwd Feedforward input through layer (without activation)
//
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
// input - Input node
//
func (l *boundLayer) Fwd(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	var out *gorgonia.Node
	var err error
	switch l.Type {
	case LayerLinear:
		tOp, err := gorgonia.Transpose(l.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		out, err = gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
		if l.BiasNode != nil {
			if batchSize < 2 {
				out, err = gorgonia.Add(out, l.BiasNode)
				if err != nil {
					return nil, errors.Wrap(err, "Can't add bias")
				}
			} else {
				out, err = gorgonia.BroadcastAdd(out, l.BiasNode, nil, []byte{0})
				if err != nil {
					return nil, errors.Wrap(err, fmt.Sprintf("Can't add bias [in broadcast term with batch_size = %d]", batchSize))
				}
			}
		}
	case LayerConvolutional:
		out, err = gorgonia.Conv2d(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride, l.Dilation)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
	case LayerMaxpool:
		out, err = gorgonia.MaxPool2D(input, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't maxpool[2D] input by kernel")
		}
	case LayerFlatten:
		out, err = gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
	case LayerReshape:
		out, err = gorgonia.Reshape(input, append(tensor.Shape{batchSize}, l.ReshapeDims...))
		if err != nil {
			return nil, errors.Wrap(err, "Can't reshape input")
		}
	case LayerUpsample:
		out, err = gorgonia.Upsample2D(input, l.Scale)
		if err != nil {
			return nil, errors.Wrap(err, "Can't upsample[2D] input")
		}
	case LayerDropout:
		out, err = gorgonia.Dropout(input, l.Probability)
		if err != nil {
			return nil, errors.Wrap(err, "Can't apply dropout")
		}
	case LayerGaussianNoise:
		noise := gorgonia.GaussianRandomNode(input.Graph(), input.Dtype(), 0, l.Stddev, input.Shape()...)
		out, err = gorgonia.Add(input, noise)
		if err != nil {
			return nil, errors.Wrap(err, "Can't add gaussian noise")
		}
	case LayerMinibatchDiscrimination:
		out, err = minibatchDiscriminationLayer(input, batchSize, l.Groups)
		if err != nil {
			return nil, errors.Wrap(err, "Can't apply minibatch discrimination")
		}
	default:
		return nil, fmt.Errorf("Layer type '%d' (uint16) is not handled", l.Type)
	}
	return out, nil
}

// activate Applies activation function of the layer. Nil activation means no activation
func (l *boundLayer) activate(input *gorgonia.Node) (*gorgonia.Node, error) {
	if l.Activation == nil {
		return input, nil
	}
	return l.Activation(input, l.Options)
}
