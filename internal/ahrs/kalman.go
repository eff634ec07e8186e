// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ahrs

// kalmanCore is a discrete extended Kalman filter recursion fixed at four
// state components (the orientation quaternion) and six observation
// components (gravity and earth-field direction in the body frame). The
// dimensions are baked in so every cycle runs on value arrays with no heap
// traffic; the process and observation models are computed by the caller and
// handed in, which keeps this type free of any orientation semantics.
type kalmanCore struct {
	statePre  [4]float64 // a-priori state, set by predict
	statePost [4]float64 // a-posteriori state, set by correct

	errorCovPre  [4][4]float64
	errorCovPost [4][4]float64

	transition          [4][4]float64 // F, written by the process model
	processNoiseCov     [4][4]float64 // Q·dt, written by the process model
	observation         [6][4]float64 // H, written by the observation model
	observationNoiseCov [6]float64    // diagonal of R, written by the observation model
}

// newKalmanCore seeds the filter at the identity orientation. errorCovPre
// starts at the process noise base so that a correction arriving before any
// prediction still works against a non-degenerate covariance; errorCovPost
// starts at zero.
func newKalmanCore(processNoiseBase float64) kalmanCore {
	k := kalmanCore{
		statePre:  [4]float64{1, 0, 0, 0},
		statePost: [4]float64{1, 0, 0, 0},
	}
	for i := 0; i < 4; i++ {
		k.errorCovPre[i][i] = processNoiseBase
	}
	return k
}

// predict installs the externally integrated state as the a-priori estimate
// and propagates the covariance: P⁻ = F·P·Fᵀ + Q.
func (k *kalmanCore) predict(process [4]float64) {
	k.statePre = process

	var fp [4][4]float64 // F·P
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var s float64
			for l := 0; l < 4; l++ {
				s += k.transition[i][l] * k.errorCovPost[l][j]
			}
			fp[i][j] = s
		}
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			s := k.processNoiseCov[i][j]
			for l := 0; l < 4; l++ {
				s += fp[i][l] * k.transition[j][l]
			}
			k.errorCovPre[i][j] = s
		}
	}
}

// correct folds an observation into the a-priori estimate:
//
//	S = H·P⁻·Hᵀ + R
//	K = P⁻·Hᵀ·S⁻¹
//	x = x⁻ + K·(z − h(x⁻))
//	P = (I − K·H)·P⁻
//
// S stays invertible as long as the diagonal of R is positive, which the
// observation model guarantees (adaptive noise floors, startup floors, and
// the inert-magnetometer constant all bound it away from zero).
func (k *kalmanCore) correct(z, zPred [6]float64) {
	var pht [4][6]float64 // P⁻·Hᵀ
	for i := 0; i < 4; i++ {
		for j := 0; j < 6; j++ {
			var s float64
			for l := 0; l < 4; l++ {
				s += k.errorCovPre[i][l] * k.observation[j][l]
			}
			pht[i][j] = s
		}
	}

	var innovCov [6][6]float64 // S
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			var s float64
			for l := 0; l < 4; l++ {
				s += k.observation[i][l] * pht[l][j]
			}
			innovCov[i][j] = s
		}
		innovCov[i][i] += k.observationNoiseCov[i]
	}
	sInv := invert6(innovCov)

	var gain [4][6]float64 // K
	for i := 0; i < 4; i++ {
		for j := 0; j < 6; j++ {
			var s float64
			for l := 0; l < 6; l++ {
				s += pht[i][l] * sInv[l][j]
			}
			gain[i][j] = s
		}
	}

	for i := 0; i < 4; i++ {
		s := k.statePre[i]
		for l := 0; l < 6; l++ {
			s += gain[i][l] * (z[l] - zPred[l])
		}
		k.statePost[i] = s
	}

	var kh [4][4]float64 // K·H
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var s float64
			for l := 0; l < 6; l++ {
				s += gain[i][l] * k.observation[l][j]
			}
			kh[i][j] = s
		}
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			s := k.errorCovPre[i][j]
			for l := 0; l < 4; l++ {
				s -= kh[i][l] * k.errorCovPre[l][j]
			}
			k.errorCovPost[i][j] = s
		}
	}
}

// invert6 inverts a 6×6 matrix by Gauss-Jordan elimination with partial
// pivoting. The innovation covariance handed in here is symmetric positive
// definite by construction, so pivots do not vanish.
func invert6(m [6][6]float64) [6][6]float64 {
	var inv [6][6]float64
	for i := 0; i < 6; i++ {
		inv[i][i] = 1
	}
	for col := 0; col < 6; col++ {
		pivot := col
		for r := col + 1; r < 6; r++ {
			if abs(m[r][col]) > abs(m[pivot][col]) {
				pivot = r
			}
		}
		if pivot != col {
			m[col], m[pivot] = m[pivot], m[col]
			inv[col], inv[pivot] = inv[pivot], inv[col]
		}
		d := m[col][col]
		for j := 0; j < 6; j++ {
			m[col][j] /= d
			inv[col][j] /= d
		}
		for r := 0; r < 6; r++ {
			if r == col {
				continue
			}
			f := m[r][col]
			if f == 0 {
				continue
			}
			for j := 0; j < 6; j++ {
				m[r][j] -= f * m[col][j]
				inv[r][j] -= f * inv[col][j]
			}
		}
	}
	return inv
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
