package began

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// EquilibriumState Value of equilibrium variable k_t. Zero value is the initial state.
type EquilibriumState struct {
	K float64
}

// Controller Proportional feedback law for k_t.
//
// Gamma - target ratio between reconstruction loss of generated and real images
// LambdaK - proportional gain
//
type Controller struct {
	Gamma   float64
	LambdaK float64
}

// Validate Checks controller's constants
func (c Controller) Validate() error {
	if math.IsNaN(c.Gamma) || c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma should be in [0;1], but got %f", c.Gamma)
	}
	if math.IsNaN(c.LambdaK) || math.IsInf(c.LambdaK, 0) || c.LambdaK < 0 {
		return fmt.Errorf("lambda_k should be finite and >= 0, but got %f", c.LambdaK)
	}
	return nil
}

// Next Returns state after observing batch means of reconstruction losses:
//
//	k' = clip(k + lambda_k*(gamma*meanReal - meanGen), 0, 1)
func (c Controller) Next(s EquilibriumState, meanGen, meanReal float64) EquilibriumState {
	return EquilibriumState{K: clip(s.K+c.LambdaK*(c.Gamma*meanReal-meanGen), 0, 1)}
}

// Step Pure transition (state, per-sample losses) => (next state, per-sample discriminator loss).
// Loss is evaluated with the k of the incoming state, so the update takes effect from the next step.
func (c Controller) Step(s EquilibriumState, genRecon, realRecon []float64) (EquilibriumState, []float64) {
	loss := make([]float64, len(realRecon))
	for i := range realRecon {
		loss[i] = realRecon[i] - s.K*genRecon[i]
	}
	return c.Next(s, mean(genRecon), mean(realRecon)), loss
}

// Convergence Global convergence measure of BEGAN: meanReal + |gamma*meanReal - meanGen|
func (c Controller) Convergence(meanGen, meanReal float64) float64 {
	return meanReal + math.Abs(c.Gamma*meanReal-meanGen)
}

func clip(v, min, max float64) float64 {
	// NaN never reaches k_t
	if math.IsNaN(v) || v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
