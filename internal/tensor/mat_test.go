package tensor

import (
	"math"
	"testing"
)

func TestMatVecMatchesNaive(t *testing.T) {
	m := NewMat(4, 3)
	FillRand(&m, 7)
	x := []float32{0.5, -1, 2, 0.25}

	got := make([]float32, 3)
	m.MatVec(got, x)

	for j := 0; j < 3; j++ {
		var want float32
		for i := 0; i < 4; i++ {
			want += x[i] * m.Row(i)[j]
		}
		if math.Abs(float64(got[j]-want)) > 1e-5 {
			t.Fatalf("col %d: got %f, want %f", j, got[j], want)
		}
	}
}

func TestFillRandDeterministic(t *testing.T) {
	a := NewMat(3, 3)
	b := NewMat(3, 3)
	FillRand(&a, 42)
	FillRand(&b, 42)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("element %d differs: %f vs %f", i, a.Data[i], b.Data[i])
		}
	}
}

func TestRowOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	m := NewMat(2, 2)
	_ = m.Row(2)
}
