// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
}

// NewMockSource creates a mock rotation source that sweeps a slowly
// precessing axis through a full turn, for bench work without hardware.
func NewMockSource() Source {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) Next() (Rotation, error) {
	elapsed := time.Since(m.start).Seconds()

	tilt := 0.3 * math.Sin(elapsed*0.5)
	ax := math.Sin(tilt) * math.Cos(elapsed*0.2)
	ay := math.Sin(tilt) * math.Sin(elapsed*0.2)
	az := math.Cos(tilt)

	return Rotation{
		AxisX:    ax,
		AxisY:    ay,
		AxisZ:    az,
		AngleDeg: math.Mod(elapsed*30, 360),
	}, nil
}
