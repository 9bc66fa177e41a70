package began

import (
	"math"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestMinibatchFeaturesExtremes(t *testing.T) {
	same := tensor.New(tensor.WithShape(4, 2, 3), tensor.WithBacking(make([]float64, 24)))
	stats, err := MinibatchFeatures(same)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range stats.Data().([]float64) {
		if math.Abs(v-4) > 1e-12 {
			t.Errorf("identical samples, score %d: expected 4, got %v", i, v)
		}
	}

	far := make([]float64, 4*2*3)
	for i := range far {
		far[i] = float64(i/6) * 100
	}
	stats, err = MinibatchFeatures(tensor.New(tensor.WithShape(4, 2, 3), tensor.WithBacking(far)))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range stats.Data().([]float64) {
		if math.Abs(v-1) > 1e-9 {
			t.Errorf("distant samples, score %d: expected self-similarity only, got %v", i, v)
		}
	}
}

func TestMinibatchDiscriminationGraph(t *testing.T) {
	value := tensor.New(tensor.WithShape(3, 2, 2), tensor.WithBacking([]float64{
		0.1, 0.2, 0.3, 0.4,
		0.5, -0.2, 0.0, 1.0,
		-0.3, 0.2, 0.6, 0.4,
	}))
	g := gorgonia.NewGraph()
	x := gorgonia.NewTensor(g, tensor.Float64, 3, gorgonia.WithShape(3, 2, 2), gorgonia.WithName("x"))
	out, err := MinibatchDiscrimination(x)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Shape().Eq(tensor.Shape{3, 2}) {
		t.Fatalf("expected shape [3 2], got %v", out.Shape())
	}
	var outVal gorgonia.Value
	gorgonia.Read(out, &outVal)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	if err := gorgonia.Let(x, value); err != nil {
		t.Fatal(err)
	}
	if err := tm.RunAll(); err != nil {
		t.Fatal(err)
	}
	want, err := MinibatchFeatures(value)
	if err != nil {
		t.Fatal(err)
	}
	got, err := vectorValue(outVal)
	if err != nil {
		t.Fatal(err)
	}
	for i, w := range want.Data().([]float64) {
		if math.Abs(got[i]-w) > 1e-9 {
			t.Errorf("score %d: graph gives %v, dense gives %v", i, got[i], w)
		}
	}
}

func TestSampleSimilarity(t *testing.T) {
	same := tensor.New(tensor.WithShape(3, 1, 2, 2), tensor.WithBacking(make([]float64, 12)))
	v, err := SampleSimilarity(same)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v-1) > 1e-12 {
		t.Errorf("identical images: expected 1, got %v", v)
	}
	data := make([]float64, 12)
	for i := range data {
		data[i] = float64(i/4)*200 - 200
	}
	v, err = SampleSimilarity(tensor.New(tensor.WithShape(3, 1, 2, 2), tensor.WithBacking(data)))
	if err != nil {
		t.Fatal(err)
	}
	if v > 1e-9 {
		t.Errorf("distant images: expected ~0, got %v", v)
	}
}
