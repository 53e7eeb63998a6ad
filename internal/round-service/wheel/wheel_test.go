package wheel

import (
	"errors"
	"math/rand"
	"testing"
)

func TestNewRejectsBadLayouts(t *testing.T) {
	cases := []struct {
		name        string
		multipliers []int64
		weights     []int64
	}{
		{"empty", nil, nil},
		{"length mismatch", []int64{2, 3}, []int64{1}},
		{"zero weight", []int64{2, 3}, []int64{1, 0}},
		{"negative weight", []int64{2, 3}, []int64{1, -5}},
		{"negative multiplier", []int64{2, -3}, []int64{1, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.multipliers, tc.weights); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	w, err := New([]int64{2, 3, 5}, []int64{4, 2, 1})
	if err != nil {
		t.Fatal(err)
	}

	for _, opt := range []int{0, 1, 2} {
		if err := w.Validate(opt); err != nil {
			t.Errorf("option %d: unexpected error %v", opt, err)
		}
	}
	for _, opt := range []int{-1, 3, 99} {
		if err := w.Validate(opt); !errors.Is(err, ErrInvalidOption) {
			t.Errorf("option %d: got %v, want ErrInvalidOption", opt, err)
		}
	}
}

func TestPickAtBoundaries(t *testing.T) {
	// pesos 4,2,1 -> acumulado 4,6,7
	w, err := New([]int64{2, 3, 5}, []int64{4, 2, 1})
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		roll int64
		want int
	}{
		{0, 0}, {3, 0},
		{4, 1}, {5, 1},
		{6, 2},
	}
	for _, tc := range cases {
		if got := w.PickAt(tc.roll); got != tc.want {
			t.Errorf("PickAt(%d) = %d, want %d", tc.roll, got, tc.want)
		}
	}
}

// Distribuição empírica de 100k sorteios deve bater com os pesos configurados
// (qui-quadrado, df = opções-1, alfa = 0.001).
func TestDrawDistribution(t *testing.T) {
	multipliers := []int64{2, 3, 5, 10, 15, 20, 45, 60}
	weights := []int64{500, 333, 200, 100, 66, 50, 22, 16}
	w, err := New(multipliers, weights)
	if err != nil {
		t.Fatal(err)
	}

	const draws = 100000
	rng := rand.New(rand.NewSource(42))
	counts := make([]int, w.Options())
	for i := 0; i < draws; i++ {
		counts[w.Draw(rng)]++
	}

	var chi2 float64
	for i, wt := range weights {
		expected := float64(draws) * float64(wt) / float64(w.TotalWeight())
		diff := float64(counts[i]) - expected
		chi2 += diff * diff / expected
	}

	// valor crítico para df=7, alfa=0.001
	const critical = 24.322
	if chi2 > critical {
		t.Fatalf("chi2 = %.3f exceeds critical %.3f (counts %v)", chi2, critical, counts)
	}
}

// Toda opção deve ter valor esperado abaixo de 1 com o layout default
// (peso/total * multiplicador < 1), senão a casa paga mais do que arrecada.
func TestDefaultLayoutHouseEdge(t *testing.T) {
	multipliers := []int64{2, 3, 5, 10, 15, 20, 45, 60}
	weights := []int64{500, 333, 200, 100, 66, 50, 22, 16}
	w, err := New(multipliers, weights)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < w.Options(); i++ {
		ev := float64(weights[i]) / float64(w.TotalWeight()) * float64(multipliers[i])
		if ev >= 1 {
			t.Errorf("option %d: expected value %.3f >= 1", i, ev)
		}
	}
}
