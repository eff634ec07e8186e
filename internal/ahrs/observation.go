// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ahrs

import "math"

// standardGravity is the accelerometer's expected magnitude at rest, m/s².
const standardGravity = 9.81

// inertMagNoise is the magnetometer noise variance substituted when no fresh
// sample exists. Its value is immaterial because the magnetometer rows of H
// are zeroed in that case; it only has to keep the innovation covariance
// invertible. 1.0 sits comfortably away from both zero and overflow.
const inertMagNoise = 1.0

// computeObservation builds the 6-component observation and its prediction
// from the a-priori state: components 0-2 are gravity in the body frame
// (accelerometer), components 3-5 are the tilt-compensated horizontal earth
// field (magnetometer). It also fills the observation Jacobian and the
// adaptive diagonal noise, and consumes the cached magnetometer sample
// (at most once per correction).
func (e *Estimator) computeObservation() (z, zPred [6]float64) {
	q0 := e.filter.statePre[0]
	q1 := e.filter.statePre[1]
	q2 := e.filter.statePre[2]
	q3 := e.filter.statePre[3]

	// Third row of the direction cosine matrix: world Z in body axes.
	dcmZ0 := 2 * (q1*q3 - q0*q2)
	dcmZ1 := 2 * (q2*q3 + q0*q1)
	dcmZ2 := q0*q0 - q1*q1 - q2*q2 + q3*q3

	// Accelerometer block. The raw vector is used unnormalized; when its
	// magnitude strays from g the adaptive noise below de-weights it.
	z[0] = e.a[0]
	z[1] = e.a[1]
	z[2] = e.a[2]
	zPred[0] = dcmZ0 * standardGravity
	zPred[1] = dcmZ1 * standardGravity
	zPred[2] = dcmZ2 * standardGravity
	rG := e.cfg.RGK0 + e.cfg.RGKW*e.wNorm + e.cfg.RGKG*math.Abs(standardGravity-e.aNorm)

	var rY float64
	if e.magReady {
		mx := e.m[0]
		my := e.m[1]
		mz := e.m[2]

		dotMZ := mx*dcmZ0 + my*dcmZ1 + mz*dcmZ2

		dipAngle := math.Acos(dotMZ / e.mNorm)
		if math.IsNaN(dipAngle) {
			dipAngle = 0
		}

		// Exponential means seed on the first consumed sample so the
		// disturbance terms start at zero instead of a startup spike.
		if e.mNormMean < 0 {
			e.mNormMean = e.mNorm
		} else {
			e.mNormMean = e.cfg.MeanAlpha*e.mNormMean + (1-e.cfg.MeanAlpha)*e.mNorm
		}
		if e.mDipAngleMean < 0 {
			e.mDipAngleMean = dipAngle
		} else {
			e.mDipAngleMean = e.cfg.MeanAlpha*e.mDipAngleMean + (1-e.cfg.MeanAlpha)*dipAngle
		}

		// Reject the field's component along body Z (tilt compensation)
		// and renormalize what's left to a unit horizontal direction.
		mx -= dotMZ * dcmZ0
		my -= dotMZ * dcmZ1
		mz -= dotMZ * dcmZ2
		horizNorm := math.Sqrt(mx*mx + my*my + mz*mz)
		if horizNorm > epsilon {
			mx /= horizNorm
			my /= horizNorm
			mz /= horizNorm
		}

		z[3] = mx
		z[4] = my
		z[5] = mz
		// Second row of the DCM: world Y in body axes.
		zPred[3] = 2 * (q1*q2 + q0*q3)
		zPred[4] = q0*q0 - q1*q1 + q2*q2 - q3*q3
		zPred[5] = 2 * (q2*q3 - q0*q1)

		rY = e.cfg.RYK0 + e.cfg.RYKW*e.wNorm + e.cfg.RYKG*math.Abs(standardGravity-e.aNorm) +
			e.cfg.RYKN*math.Abs(e.mNorm-e.mNormMean) + e.cfg.RYKD*math.Abs(dipAngle-e.mDipAngleMean)
	} else {
		rY = inertMagNoise
	}

	g := standardGravity
	h := &e.filter.observation
	h[0][0] = -2 * g * q2
	h[0][1] = +2 * g * q3
	h[0][2] = -2 * g * q0
	h[0][3] = +2 * g * q1
	h[1][0] = +2 * g * q1
	h[1][1] = +2 * g * q0
	h[1][2] = +2 * g * q3
	h[1][3] = +2 * g * q2
	h[2][0] = +2 * g * q0
	h[2][1] = -2 * g * q1
	h[2][2] = -2 * g * q2
	h[2][3] = +2 * g * q3
	if e.magReady {
		h[3][0] = +2 * q3
		h[3][1] = +2 * q2
		h[3][2] = +2 * q1
		h[3][3] = +2 * q0
		h[4][0] = +2 * q0
		h[4][1] = -2 * q1
		h[4][2] = +2 * q2
		h[4][3] = -2 * q3
		h[5][0] = -2 * q1
		h[5][1] = -2 * q0
		h[5][2] = +2 * q3
		h[5][3] = +2 * q2
	} else {
		for i := 3; i < 6; i++ {
			for j := 0; j < 4; j++ {
				h[i][j] = 0
			}
		}
	}

	// During startup fixed floors force fast convergence from the assumed
	// initial orientation; afterwards the adaptive values take over.
	r := &e.filter.observationNoiseCov
	if e.startupTime > 0 {
		r[0] = e.cfg.RGStartup
		r[1] = e.cfg.RGStartup
		r[2] = e.cfg.RGStartup
		r[3] = e.cfg.RYStartup
		r[4] = e.cfg.RYStartup
		r[5] = e.cfg.RYStartup
	} else {
		r[0] = rG
		r[1] = rG
		r[2] = rG
		r[3] = rY
		r[4] = rY
		r[5] = rY
	}

	// Latest magnetometer sample is now consumed.
	e.magReady = false
	return z, zPred
}
