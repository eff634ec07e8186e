// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ahrs

import "math"

// epsilon is the float64 machine epsilon, used as the degeneracy threshold
// for quaternion norms and rotation angles.
const epsilon = 2.220446049250313e-16

// normalizeQuat scales q to unit norm. If the norm is below epsilon the
// quaternion is reset to [1,1,1,1]. That fallback is deliberately not a unit
// quaternion: it signals degeneracy and callers must not assume unit norm
// immediately after this branch without re-normalizing. Known sharp edge,
// kept for parity with the filter this was tuned against.
func normalizeQuat(q *[4]float64) {
	norm := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if norm > epsilon {
		q[0] /= norm
		q[1] /= norm
		q[2] /= norm
		q[3] /= norm
	} else {
		q[0] = 1
		q[1] = 1
		q[2] = 1
		q[3] = 1
	}
}

// shortestPathQuat flips q to -q when -q is closer to prev than +q, then
// records q into prev. q and -q encode the same rotation; without this the
// estimate can jump between the two covers and break angular continuity for
// anything interpolating the output. The test comes from the sign of
// |q - prev|^2 - |-q - prev|^2, which reduces to the dot product.
func shortestPathQuat(prev, q *[4]float64) {
	if q[0]*prev[0]+q[1]*prev[1]+q[2]*prev[2]+q[3]*prev[3] < 0 {
		q[0] = -q[0]
		q[1] = -q[1]
		q[2] = -q[2]
		q[3] = -q[3]
	}
	*prev = *q
}
