package ahrs

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func quatNorm(q [4]float64) float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

func TestNormalizeQuatUnitNorm(t *testing.T) {
	quats := [][4]float64{
		{1, 0, 0, 0},
		{0.5, 0.5, 0.5, 0.5},
		{3, -4, 0, 0},
		{-0.1, 0.2, -0.3, 0.4},
		{1e8, -2e8, 3e8, 4e8},
		{1e-8, 2e-8, -1e-8, 3e-8},
	}
	for _, q := range quats {
		in := q
		normalizeQuat(&q)
		if math.Abs(quatNorm(q)-1) > tolerance {
			t.Errorf("normalizeQuat(%v) = %v, norm %v, want 1", in, q, quatNorm(q))
		}
	}
}

func TestNormalizeQuatIdempotent(t *testing.T) {
	q := [4]float64{0.3, -0.4, 0.5, 0.2}
	normalizeQuat(&q)
	before := q
	normalizeQuat(&q)
	for i := 0; i < 4; i++ {
		if math.Abs(q[i]-before[i]) > tolerance {
			t.Errorf("component %d changed on re-normalization: %v -> %v", i, before[i], q[i])
		}
	}
}

func TestNormalizeQuatDegenerateFallback(t *testing.T) {
	q := [4]float64{0, 0, 0, 0}
	normalizeQuat(&q)
	want := [4]float64{1, 1, 1, 1}
	if q != want {
		t.Errorf("degenerate normalizeQuat = %v, want %v", q, want)
	}

	q = [4]float64{1e-17, -1e-17, 0, 1e-18}
	normalizeQuat(&q)
	if q != want {
		t.Errorf("near-zero normalizeQuat = %v, want %v", q, want)
	}
}

func TestShortestPathQuatFlipsNegatedCover(t *testing.T) {
	prev := [4]float64{1, 0, 0, 0}
	q := [4]float64{-0.9, 0.1, 0.1, 0.1}
	shortestPathQuat(&prev, &q)
	if q[0] < 0 {
		t.Errorf("quaternion not flipped to the near cover: %v", q)
	}
	if prev != q {
		t.Errorf("history not updated: prev %v, q %v", prev, q)
	}
}

func TestShortestPathQuatKeepsAlignedCover(t *testing.T) {
	prev := [4]float64{0.7, 0.1, 0.1, 0.1}
	q := [4]float64{0.71, 0.09, 0.11, 0.1}
	in := q
	shortestPathQuat(&prev, &q)
	if q != in {
		t.Errorf("aligned quaternion was modified: %v -> %v", in, q)
	}
}
