package ahrs

import (
	"math"
	"testing"
)

func TestPredictPropagatesCovariance(t *testing.T) {
	k := newKalmanCore(1e-4)
	// Identity transition: P⁻ must be exactly P + Q.
	for i := 0; i < 4; i++ {
		k.transition[i][i] = 1
		k.processNoiseCov[i][i] = 0.5
		k.errorCovPost[i][i] = float64(i + 1)
	}
	k.predict([4]float64{1, 0, 0, 0})

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if i == j {
				want = float64(i+1) + 0.5
			}
			if math.Abs(k.errorCovPre[i][j]-want) > tolerance {
				t.Errorf("errorCovPre[%d][%d] = %v, want %v", i, j, k.errorCovPre[i][j], want)
			}
		}
	}
	if k.statePre != [4]float64{1, 0, 0, 0} {
		t.Errorf("statePre = %v, want process value", k.statePre)
	}
}

func TestCorrectMovesStateTowardObservation(t *testing.T) {
	k := newKalmanCore(1e-4)
	// Observe the first three state components directly with low noise.
	for i := 0; i < 3; i++ {
		k.observation[i][i] = 1
	}
	for i := 0; i < 6; i++ {
		k.observationNoiseCov[i] = 0.01
	}
	for i := 0; i < 4; i++ {
		k.errorCovPre[i][i] = 1
	}
	k.statePre = [4]float64{0, 0, 0, 0}

	z := [6]float64{1, 2, 3, 0, 0, 0}
	var zPred [6]float64
	k.correct(z, zPred)

	// Gain for each observed component is 1/(1+R) with unit covariance.
	want := 1 / 1.01
	for i := 0; i < 3; i++ {
		if math.Abs(k.statePost[i]-z[i]*want) > 1e-6 {
			t.Errorf("statePost[%d] = %v, want %v", i, k.statePost[i], z[i]*want)
		}
	}
	if math.Abs(k.statePost[3]) > tolerance {
		t.Errorf("unobserved component moved: %v", k.statePost[3])
	}
}

func TestCorrectShrinksCovariance(t *testing.T) {
	k := newKalmanCore(1e-4)
	for i := 0; i < 3; i++ {
		k.observation[i][i] = 1
	}
	for i := 0; i < 6; i++ {
		k.observationNoiseCov[i] = 0.1
	}
	for i := 0; i < 4; i++ {
		k.errorCovPre[i][i] = 1
	}
	k.correct([6]float64{}, [6]float64{})

	var tracePre, tracePost float64
	for i := 0; i < 4; i++ {
		tracePre += k.errorCovPre[i][i]
		tracePost += k.errorCovPost[i][i]
	}
	if tracePost >= tracePre {
		t.Errorf("covariance did not shrink: trace %v -> %v", tracePre, tracePost)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(k.errorCovPost[i][j]-k.errorCovPost[j][i]) > 1e-9 {
				t.Errorf("errorCovPost not symmetric at (%d,%d): %v vs %v",
					i, j, k.errorCovPost[i][j], k.errorCovPost[j][i])
			}
		}
	}
}

func TestCorrectInertBlockIsHarmless(t *testing.T) {
	k := newKalmanCore(1e-4)
	// Magnetometer rows zeroed, noise at the inert constant: the filter
	// must still invert S and leave the state finite.
	for i := 0; i < 3; i++ {
		k.observation[i][i] = 1
		k.observationNoiseCov[i] = 0.5
	}
	for i := 3; i < 6; i++ {
		k.observationNoiseCov[i] = inertMagNoise
	}
	for i := 0; i < 4; i++ {
		k.errorCovPre[i][i] = 1e-3
	}
	k.statePre = [4]float64{1, 0, 0, 0}
	k.correct([6]float64{1, 0, 0, 0, 0, 0}, [6]float64{1, 0, 0, 0, 0, 0})

	for i := 0; i < 4; i++ {
		if math.IsNaN(k.statePost[i]) || math.IsInf(k.statePost[i], 0) {
			t.Fatalf("statePost[%d] not finite: %v", i, k.statePost[i])
		}
	}
	// Zero innovation must not move the state.
	if k.statePost != k.statePre {
		t.Errorf("zero innovation moved the state: %v -> %v", k.statePre, k.statePost)
	}
}

func TestInvert6(t *testing.T) {
	var m [6][6]float64
	for i := 0; i < 6; i++ {
		m[i][i] = float64(i + 1)
	}
	m[0][3] = 0.5
	m[3][0] = 0.5
	m[2][5] = -1.25
	m[5][2] = -1.25

	inv := invert6(m)

	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			var s float64
			for l := 0; l < 6; l++ {
				s += m[i][l] * inv[l][j]
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(s-want) > 1e-9 {
				t.Errorf("(M·M⁻¹)[%d][%d] = %v, want %v", i, j, s, want)
			}
		}
	}
}
