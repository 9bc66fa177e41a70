package began

import (
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func seqDense(start float64, shape ...int) *tensor.Dense {
	size := 1
	for _, s := range shape {
		size *= s
	}
	data := make([]float64, size)
	for i := range data {
		data[i] = start + float64(i)
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func equalData(t *testing.T, name string, got, want *tensor.Dense) {
	t.Helper()
	if !got.Shape().Eq(want.Shape()) {
		t.Fatalf("%s: expected shape %v, got %v", name, want.Shape(), got.Shape())
	}
	gotData, err := float64Data(got)
	if err != nil {
		t.Fatal(err)
	}
	wantData, err := float64Data(want)
	if err != nil {
		t.Fatal(err)
	}
	for i := range wantData {
		if gotData[i] != wantData[i] {
			t.Fatalf("%s: element %d: expected %v, got %v", name, i, wantData[i], gotData[i])
		}
	}
}

func TestPackSplitRoundTrip(t *testing.T) {
	for _, channels := range []int{1, 3} {
		a := seqDense(0, 2, channels, 3, 4)
		b := seqDense(1000, 2, channels, 3, 4)
		packed, err := PackPair(a, b)
		if err != nil {
			t.Fatal(err)
		}
		if !packed.Shape().Eq(tensor.Shape{2, 2 * channels, 3, 4}) {
			t.Fatalf("unexpected packed shape %v", packed.Shape())
		}
		gotA, gotB, err := SplitPair(packed, channels)
		if err != nil {
			t.Fatal(err)
		}
		equalData(t, "first half", gotA, a)
		equalData(t, "second half", gotB, b)
	}
}

func TestPackPairErrors(t *testing.T) {
	if _, err := PackPair(seqDense(0, 2, 3, 4), seqDense(0, 2, 3, 4)); err == nil {
		t.Errorf("expected error for 3D batches")
	}
	if _, err := PackPair(seqDense(0, 2, 1, 3, 4), seqDense(0, 2, 1, 3, 5)); err == nil {
		t.Errorf("expected error for different shapes")
	}
	if _, _, err := SplitPair(seqDense(0, 2, 3, 3, 4), 2); err == nil {
		t.Errorf("expected error for odd number of channels")
	}
}

func TestGraphPackSplit(t *testing.T) {
	for _, channels := range []int{1, 3} {
		for _, batchSize := range []int{1, 2} {
			a := seqDense(0, batchSize, channels, 2, 3)
			b := seqDense(1000, batchSize, channels, 2, 3)
			g := gorgonia.NewGraph()
			aNode := gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(a.Shape()...), gorgonia.WithName("a"), gorgonia.WithValue(a.Clone()))
			bNode := gorgonia.NewTensor(g, tensor.Float64, 4, gorgonia.WithShape(b.Shape()...), gorgonia.WithName("b"), gorgonia.WithValue(b.Clone()))
			packed, err := packChannels(aNode, bNode)
			if err != nil {
				t.Fatal(err)
			}
			first, second, err := splitChannels(packed, channels)
			if err != nil {
				t.Fatal(err)
			}
			cost, err := gorgonia.Sum(first)
			if err != nil {
				t.Fatal(err)
			}
			// Gradient must flow back into 4D input for single channel too
			if _, err := gorgonia.Grad(cost, aNode); err != nil {
				t.Fatalf("channels=%d batch=%d: %v", channels, batchSize, err)
			}
			var packedVal, firstVal, secondVal gorgonia.Value
			gorgonia.Read(packed, &packedVal)
			gorgonia.Read(first, &firstVal)
			gorgonia.Read(second, &secondVal)
			tm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(aNode))
			if err := tm.RunAll(); err != nil {
				tm.Close()
				t.Fatal(err)
			}
			want, err := PackPair(a, b)
			if err != nil {
				t.Fatal(err)
			}
			equalData(t, "packed", packedVal.(*tensor.Dense), want)
			features := channels * 2 * 3
			wantFirst := a.Clone().(*tensor.Dense)
			wantFirst.Reshape(batchSize, features)
			wantSecond := b.Clone().(*tensor.Dense)
			wantSecond.Reshape(batchSize, features)
			equalData(t, "first half", firstVal.(*tensor.Dense).Materialize().(*tensor.Dense), wantFirst)
			equalData(t, "second half", secondVal.(*tensor.Dense).Materialize().(*tensor.Dense), wantSecond)

			grad, err := aNode.Grad()
			if err != nil {
				t.Fatal(err)
			}
			gradDense := grad.(*tensor.Dense)
			if !gradDense.Shape().Eq(a.Shape()) {
				t.Fatalf("expected gradient shape %v, got %v", a.Shape(), gradDense.Shape())
			}
			for i, v := range gradDense.Data().([]float64) {
				if v != 1 {
					t.Fatalf("channels=%d batch=%d: gradient element %d: expected 1, got %v", channels, batchSize, i, v)
				}
			}
			tm.Close()
		}
	}
}
