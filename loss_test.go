package began

import (
	"math"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	// [batch=2, 2 channels (C=1 each), 1, 2]
	lossTrueData = []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}
	lossPredData = []float64{
		1, 1, 3, 5,
		4, 8, 7, 7,
	}
)

func TestDiscriminatorLoss(t *testing.T) {
	g := gorgonia.NewGraph()
	yTrue := gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(2, 2, 1, 2), gorgonia.WithName("y_true"))
	yPred := gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(2, 2, 1, 2), gorgonia.WithName("y_pred"))
	kt := gorgonia.NewScalar(g, tensor.Float64, gorgonia.WithName("k_t"))
	loss, err := DiscriminatorLoss(yTrue, yPred, kt, 1)
	if err != nil {
		t.Fatal(err)
	}
	var costVal, genVal, realVal gorgonia.Value
	gorgonia.Read(loss.Cost, &costVal)
	gorgonia.Read(loss.GenRecon, &genVal)
	gorgonia.Read(loss.RealRecon, &realVal)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()

	c := Controller{Gamma: 0.5, LambdaK: 0.001}
	for _, k := range []float64{0, 0.3, 0, 1} {
		if err := gorgonia.Let(yTrue, tensor.New(tensor.WithShape(2, 2, 1, 2), tensor.WithBacking(append([]float64(nil), lossTrueData...)))); err != nil {
			t.Fatal(err)
		}
		if err := gorgonia.Let(yPred, tensor.New(tensor.WithShape(2, 2, 1, 2), tensor.WithBacking(append([]float64(nil), lossPredData...)))); err != nil {
			t.Fatal(err)
		}
		if err := gorgonia.Let(kt, gorgonia.NewF64(k)); err != nil {
			t.Fatal(err)
		}
		if err := tm.RunAll(); err != nil {
			t.Fatal(err)
		}
		cost, err := scalarValue(costVal)
		if err != nil {
			t.Fatal(err)
		}
		genRecon, err := vectorValue(genVal)
		if err != nil {
			t.Fatal(err)
		}
		realRecon, err := vectorValue(realVal)
		if err != nil {
			t.Fatal(err)
		}
		tm.Reset()

		if len(genRecon) != 2 || math.Abs(genRecon[0]-0.5) > 1e-12 || math.Abs(genRecon[1]-1.5) > 1e-12 {
			t.Fatalf("unexpected reconstruction loss of generated images %v", genRecon)
		}
		if len(realRecon) != 2 || math.Abs(realRecon[0]-0.5) > 1e-12 || math.Abs(realRecon[1]-0.5) > 1e-12 {
			t.Fatalf("unexpected reconstruction loss of real images %v", realRecon)
		}
		_, perSample := c.Step(EquilibriumState{K: k}, genRecon, realRecon)
		if want := mean(perSample); math.Abs(cost-want) > 1e-12 {
			t.Errorf("k=%v: expected cost %v, got %v", k, want, cost)
		}
		if want := 0.5 - k; math.Abs(cost-want) > 1e-12 {
			t.Errorf("k=%v: expected cost %v, got %v", k, want, cost)
		}
	}
}

func TestDiscriminatorLossShapeErrors(t *testing.T) {
	g := gorgonia.NewGraph()
	yTrue := gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(2, 2, 1, 2), gorgonia.WithName("y_true"))
	yPred := gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(2, 2, 1, 3), gorgonia.WithName("y_pred"))
	kt := gorgonia.NewScalar(g, tensor.Float64, gorgonia.WithName("k_t"))
	if _, err := DiscriminatorLoss(yTrue, yPred, kt, 1); err == nil {
		t.Errorf("expected error for different shapes")
	}
	notScalar := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(2), gorgonia.WithName("k_vec"))
	if _, err := DiscriminatorLoss(yTrue, yTrue, notScalar, 1); err == nil {
		t.Errorf("expected error for non-scalar k_t")
	}
	if _, err := DiscriminatorLoss(yTrue, yTrue, kt, 2); err == nil {
		t.Errorf("expected error for wrong number of channels")
	}
}

func TestGeneratorLoss(t *testing.T) {
	g := gorgonia.NewGraph()
	pred := gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(2, 2, 1, 2), gorgonia.WithName("pred"))
	loss, err := GeneratorLoss(pred, 1)
	if err != nil {
		t.Fatal(err)
	}
	var lossVal gorgonia.Value
	gorgonia.Read(loss, &lossVal)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	if err := gorgonia.Let(pred, tensor.New(tensor.WithShape(2, 2, 1, 2), tensor.WithBacking(append([]float64(nil), lossPredData...)))); err != nil {
		t.Fatal(err)
	}
	if err := tm.RunAll(); err != nil {
		t.Fatal(err)
	}
	got, err := vectorValue(lossVal)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{3, 2}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
