package began

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
	// LossReductionPerSample Mean over every axis except the first (batch) one
	LossReductionPerSample
)

// L1Loss See ref. https://en.wikipedia.org/wiki/Least_absolute_deviations
// Default reduction is 'mean'
func L1Loss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	abs, err := gorgonia.Abs(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do |x|")
	}

	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(abs)
	case LossReductionMean:
		return gorgonia.Mean(abs)
	case LossReductionPerSample:
		return perSampleMean(abs)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// perSampleMean Reduces [B, ...] to [B] by averaging trailing axes one by one
func perSampleMean(x *gorgonia.Node) (*gorgonia.Node, error) {
	var err error
	out := x
	for axis := x.Dims() - 1; axis >= 1; axis-- {
		out, err = gorgonia.Mean(out, axis)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't do mean along axis %d", axis))
		}
	}
	return out, nil
}

// GeneratorLoss Reconstruction gap of the generator phase.
// pred is a packed pair {generated images, their reconstructions by the autoencoder}.
// Returns per-sample mean absolute difference between halves, shape [B]. Reduction over batch is up to caller.
func GeneratorLoss(pred *gorgonia.Node, channels int) (*gorgonia.Node, error) {
	generated, reconstructed, err := splitChannels(pred, channels)
	if err != nil {
		return nil, errors.Wrap(err, "Can't split prediction")
	}
	loss, err := L1Loss(generated, reconstructed, LossReductionPerSample)
	if err != nil {
		return nil, errors.Wrap(err, "Can't evaluate reconstruction loss")
	}
	return loss, nil
}

// DiscriminatorLossNodes Outputs of discriminator loss
//
// Cost - scalar mean(RealRecon - k_t*GenRecon), minimized by optimizer
// GenRecon - per-sample reconstruction loss of generated images, shape [B]
// RealRecon - per-sample reconstruction loss of real images, shape [B]
//
type DiscriminatorLossNodes struct {
	Cost      *gorgonia.Node
	GenRecon  *gorgonia.Node
	RealRecon *gorgonia.Node
}

// DiscriminatorLoss Boundary equilibrium loss of the autoencoder.
//
// yTrue - packed pair {generated images, real images}
// yPred - packed pair of their reconstructions
// kt - scalar node holding current equilibrium variable. Controller is responsible for its value
// channels - number of channels of a single image
//
func DiscriminatorLoss(yTrue, yPred, kt *gorgonia.Node, channels int) (*DiscriminatorLossNodes, error) {
	if !yTrue.Shape().Eq(yPred.Shape()) {
		return nil, fmt.Errorf("target and prediction must have same shape, but got %v and %v", yTrue.Shape(), yPred.Shape())
	}
	if !kt.IsScalar() {
		return nil, fmt.Errorf("k_t must be scalar, but got shape %v", kt.Shape())
	}
	xGen, xReal, err := splitChannels(yTrue, channels)
	if err != nil {
		return nil, errors.Wrap(err, "Can't split target")
	}
	yGen, yReal, err := splitChannels(yPred, channels)
	if err != nil {
		return nil, errors.Wrap(err, "Can't split prediction")
	}
	genRecon, err := L1Loss(xGen, yGen, LossReductionPerSample)
	if err != nil {
		return nil, errors.Wrap(err, "Can't evaluate reconstruction loss of generated images")
	}
	realRecon, err := L1Loss(xReal, yReal, LossReductionPerSample)
	if err != nil {
		return nil, errors.Wrap(err, "Can't evaluate reconstruction loss of real images")
	}
	weighted, err := gorgonia.Mul(kt, genRecon)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (k_t*x)")
	}
	perSample, err := gorgonia.Sub(realRecon, weighted)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	cost, err := gorgonia.Mean(perSample)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean")
	}
	return &DiscriminatorLossNodes{
		Cost:      cost,
		GenRecon:  genRecon,
		RealRecon: realRecon,
	}, nil
}
