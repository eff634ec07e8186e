// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/orientation_computer/internal/orientation"
)

func RunMockConsole() error {
	src := orientation.NewMockSource()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		rot, err := src.Next()
		if err != nil {
			return err
		}

		fmt.Printf(
			"AXIS=(%6.3f, %6.3f, %6.3f)  ANGLE=%7.2f\n",
			rot.AxisX,
			rot.AxisY,
			rot.AxisZ,
			rot.AngleDeg,
		)
	}
	return nil
}
