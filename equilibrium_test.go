package began

import (
	"math"
	"testing"
)

func TestControllerNextClamp(t *testing.T) {
	c := Controller{Gamma: 0.5, LambdaK: 0.001}
	cases := []struct {
		name     string
		k        float64
		meanGen  float64
		meanReal float64
	}{
		{"huge gen loss", 0.5, 1e6, 0},
		{"huge real loss", 0.5, 0, 1e9},
		{"both huge", 1, 1e12, 1e12},
		{"negative overflow", 0, math.MaxFloat64, 0},
		{"positive overflow", 1, 0, math.MaxFloat64},
		{"nan", 0.3, math.NaN(), 0.1},
		{"inf", 0.3, math.Inf(1), 0.1},
	}
	for _, tc := range cases {
		next := c.Next(EquilibriumState{K: tc.k}, tc.meanGen, tc.meanReal)
		if next.K < 0 || next.K > 1 || math.IsNaN(next.K) {
			t.Errorf("%s: k_t left [0;1]: %v", tc.name, next.K)
		}
	}
	big := Controller{Gamma: 1, LambdaK: 1e6}
	if k := big.Next(EquilibriumState{K: 0.5}, 0, 1e6).K; k != 1 {
		t.Errorf("expected k_t clamped to 1, got %v", k)
	}
	if k := big.Next(EquilibriumState{K: 0.5}, 1e6, 0).K; k != 0 {
		t.Errorf("expected k_t clamped to 0, got %v", k)
	}
}

func TestControllerDirection(t *testing.T) {
	c := Controller{Gamma: 0.7, LambdaK: 0.01}
	s := EquilibriumState{K: 0.4}
	if next := c.Next(s, 0.1, 1.0); next.K < s.K {
		t.Errorf("gamma*real > gen must not decrease k_t: %v => %v", s.K, next.K)
	}
	if next := c.Next(s, 1.0, 0.1); next.K > s.K {
		t.Errorf("gamma*real < gen must not increase k_t: %v => %v", s.K, next.K)
	}
	if next := c.Next(s, 0.7, 1.0); math.Abs(next.K-s.K) > 1e-12 {
		t.Errorf("balanced losses must keep k_t: %v => %v", s.K, next.K)
	}
}

func TestControllerStepScenarios(t *testing.T) {
	c := Controller{Gamma: 0.5, LambdaK: 0.001}

	next, loss := c.Step(EquilibriumState{K: 0}, []float64{0.4, 0.4}, []float64{0.1, 0.1})
	if next.K != 0 {
		t.Fatalf("expected k_t = 0, got %v", next.K)
	}
	for i, v := range loss {
		if math.Abs(v-0.1) > 1e-12 {
			t.Errorf("sample %d: expected loss 0.1, got %v", i, v)
		}
	}

	next, loss = c.Step(EquilibriumState{K: 0.2}, []float64{0.1, 0.1}, []float64{0.4, 0.4})
	if math.Abs(next.K-0.2001) > 1e-12 {
		t.Fatalf("expected k_t = 0.2001, got %v", next.K)
	}
	for i, v := range loss {
		if math.Abs(v-(0.4-0.2*0.1)) > 1e-12 {
			t.Errorf("sample %d: expected loss 0.38, got %v", i, v)
		}
	}
}

func TestControllerStepPure(t *testing.T) {
	c := Controller{Gamma: 0.5, LambdaK: 0.001}
	gen := []float64{0.3, 0.5}
	realRecon := []float64{0.2, 0.6}
	for _, k := range []float64{0, 0.25, 1} {
		s := EquilibriumState{K: k}
		next1, loss1 := c.Step(s, gen, realRecon)
		next2, loss2 := c.Step(s, gen, realRecon)
		if next1 != next2 {
			t.Errorf("k=%v: transition is not deterministic: %v vs %v", k, next1, next2)
		}
		for i := range loss1 {
			want := realRecon[i] - k*gen[i]
			if loss1[i] != loss2[i] || math.Abs(loss1[i]-want) > 1e-12 {
				t.Errorf("k=%v sample %d: expected %v, got %v and %v", k, i, want, loss1[i], loss2[i])
			}
		}
		if s.K != k {
			t.Errorf("input state has been changed")
		}
	}
	if c.Gamma != 0.5 || c.LambdaK != 0.001 {
		t.Errorf("controller constants have been changed")
	}
	if gen[0] != 0.3 || realRecon[1] != 0.6 {
		t.Errorf("losses have been changed")
	}
}

func TestControllerConvergence(t *testing.T) {
	c := Controller{Gamma: 0.5}
	if v := c.Convergence(0.1, 0.4); math.Abs(v-0.5) > 1e-12 {
		t.Errorf("expected 0.4 + |0.2 - 0.1| = 0.5, got %v", v)
	}
}

func TestControllerValidate(t *testing.T) {
	good := []Controller{{Gamma: 0, LambdaK: 0}, {Gamma: 1, LambdaK: 10}, {Gamma: 0.5, LambdaK: 0.001}}
	for _, c := range good {
		if err := c.Validate(); err != nil {
			t.Errorf("%+v: unexpected error %v", c, err)
		}
	}
	bad := []Controller{{Gamma: -0.1}, {Gamma: 1.1}, {Gamma: math.NaN()}, {Gamma: 0.5, LambdaK: -1}, {Gamma: 0.5, LambdaK: math.Inf(1)}}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("%+v: expected error", c)
		}
	}
}
