// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ahrs

// computeProcess integrates the latest angular-velocity sample over the
// elapsed step and prepares the filter's transition matrix and process noise
// for the next predict. The integration is the first-order discretization of
// the quaternion kinematic equation q̇ = 0.5·q⊗[0,w], evaluated at the
// previous a-posteriori estimate; the transition matrix is the same equation
// linearized around w.
func (e *Estimator) computeProcess() [4]float64 {
	q0 := e.filter.statePost[0]
	q1 := e.filter.statePost[1]
	q2 := e.filter.statePost[2]
	q3 := e.filter.statePost[3]
	wx := e.w[0]
	wy := e.w[1]
	wz := e.w[2]
	dt := e.wDeltaT

	process := [4]float64{
		q0 + 0.5*dt*(-q1*wx-q2*wy-q3*wz),
		q1 + 0.5*dt*(+q0*wx-q3*wy+q2*wz),
		q2 + 0.5*dt*(+q3*wx+q0*wy-q1*wz),
		q3 + 0.5*dt*(-q2*wx+q1*wy+q0*wz),
	}
	normalizeQuat(&process)

	f := &e.filter.transition
	f[0][0] = 1
	f[0][1] = -0.5 * dt * wx
	f[0][2] = -0.5 * dt * wy
	f[0][3] = -0.5 * dt * wz
	f[1][0] = +0.5 * dt * wx
	f[1][1] = 1
	f[1][2] = +0.5 * dt * wz
	f[1][3] = -0.5 * dt * wy
	f[2][0] = +0.5 * dt * wy
	f[2][1] = -0.5 * dt * wz
	f[2][2] = 1
	f[2][3] = +0.5 * dt * wx
	f[3][0] = +0.5 * dt * wz
	f[3][1] = +0.5 * dt * wy
	f[3][2] = -0.5 * dt * wx
	f[3][3] = 1

	// Process noise for this step is the fixed base variance scaled by dt.
	q := &e.filter.processNoiseCov
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			q[i][j] = 0
		}
		q[i][i] = e.cfg.ProcessNoise * dt
	}

	return process
}
