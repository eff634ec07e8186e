// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ahrs fuses gyroscope, accelerometer and magnetometer samples into a
// single orientation estimate with a quaternion-state extended Kalman filter.
//
// The estimator is event-driven: each sensor delivers samples at its own
// cadence through OnGyro, OnAccel and OnMag. A gyroscope sample drives one
// predict cycle and refreshes the output; an accelerometer sample drives one
// correct cycle, consuming the most recent cached magnetometer sample if one
// is pending; a magnetometer sample is only cached (latest wins, no queue).
//
// The estimator holds no locks. Callers must serialize the three entry
// points onto one goroutine, the way the producers in internal/app do.
package ahrs

import (
	"log"
	"math"

	"github.com/relabs-tech/orientation_computer/internal/imu"
	"github.com/relabs-tech/orientation_computer/internal/orientation"
)

// Config collects the estimator tunables. The defaults were tuned against
// consumer-grade MEMS parts (±250°/s gyro, ±2g accelerometer) and are the
// values to start from; see DefaultConfig.
type Config struct {
	// StartupTime is how long, in seconds of gyro-integrated time, the
	// filter converges silently before producing output.
	StartupTime float64

	// Fixed observation noise floors forced during startup: small for the
	// accelerometer block, smaller still for the magnetometer block, so
	// the filter snaps to the measured attitude quickly.
	RGStartup float64
	RYStartup float64

	// Adaptive accelerometer noise: RG = RGK0 + RGKW·|w| + RGKG·|g−|a||.
	RGK0 float64
	RGKW float64 // scales with angular rate
	RGKG float64 // scales with accel-norm deviation from gravity

	// Adaptive magnetometer noise:
	// RY = RYK0 + RYKW·|w| + RYKG·|g−|a|| + RYKN·|‖m‖−mean| + RYKD·|dip−mean|.
	RYK0 float64
	RYKW float64
	RYKG float64
	RYKN float64 // scales with field-magnitude deviation from its mean
	RYKD float64 // scales with dip-angle deviation from its mean

	// ProcessNoise is the per-component state variance base; the per-step
	// process noise is ProcessNoise·dt.
	ProcessNoise float64

	// MeanAlpha is the decay factor of the exponential means of field
	// magnitude and dip angle.
	MeanAlpha float64

	// SilentCycleLimit is how many output cycles a sensor may go without
	// data before a health warning.
	SilentCycleLimit int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		StartupTime:      1.0,
		RGStartup:        1e-1,
		RYStartup:        1e-3,
		RGK0:             1.0,
		RGKW:             7.5,
		RGKG:             10.0,
		RYK0:             10.0,
		RYKW:             7.5,
		RYKG:             10.0,
		RYKN:             20.0,
		RYKD:             15.0,
		ProcessNoise:     1e-4,
		MeanAlpha:        0.99,
		SilentCycleLimit: 1000,
	}
}

// Health is a diagnostic snapshot of sensor liveness. A sensor counts as
// present once it has delivered at least one usable sample; silent-cycle
// counters tick once per output cycle and reset when that sensor delivers.
type Health struct {
	GyroPresent  bool `json:"gyro_present"`
	AccelPresent bool `json:"accel_present"`
	MagPresent   bool `json:"mag_present"`

	GyroSilentCycles  int `json:"gyro_silent_cycles"`
	AccelSilentCycles int `json:"accel_silent_cycles"`
	MagSilentCycles   int `json:"mag_silent_cycles"`
}

// Estimator is a stateful orientation filter. Construct one per rigid body
// with NewEstimator; it has no global state, so independent instances can
// run side by side.
type Estimator struct {
	cfg Config

	filter           kalmanCore
	statePreHistory  [4]float64 // previous a-priori quaternion, continuity only
	statePostHistory [4]float64 // previous a-posteriori quaternion, continuity only

	// Latest angular velocity (rad/s) and the integration step derived
	// from gyro timestamps.
	w       [3]float64
	wNorm   float64
	wDeltaT float64

	// Latest linear acceleration (m/s²).
	a     [3]float64
	aNorm float64

	// Latest magnetic field (µT) and its freshness flag; consumed at most
	// once by the next correction.
	m        [3]float64
	mNorm    float64
	magReady bool

	// Exponential means feeding the adaptive magnetometer noise; -1 means
	// not seeded yet.
	mNormMean     float64
	mDipAngleMean float64

	lastGyroTS  uint64
	lastAccelTS uint64
	lastMagTS   uint64

	startupTime float64 // seconds remaining; output suppressed while > 0

	gyroSeen  bool
	accelSeen bool
	magSeen   bool

	gyroSilent  int
	accelSilent int
	magSilent   int

	accelAbsentWarned bool
	magAbsentWarned   bool

	rot     orientation.Rotation
	haveRot bool
}

// NewEstimator builds an estimator at the identity orientation with the
// startup countdown armed.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{
		cfg:              cfg,
		filter:           newKalmanCore(cfg.ProcessNoise),
		statePreHistory:  [4]float64{1, 0, 0, 0},
		statePostHistory: [4]float64{1, 0, 0, 0},
		startupTime:      cfg.StartupTime,
		mNormMean:        -1,
		mDipAngleMean:    -1,
	}
}

// OnGyro ingests an angular-velocity sample (rad/s) and runs one predict
// cycle. The first sample, and any sample whose timestamp does not advance,
// only updates bookkeeping.
func (e *Estimator) OnGyro(s imu.Sample) {
	if e.lastGyroTS > 0 && s.TimestampUS > e.lastGyroTS {
		e.wDeltaT = float64(s.TimestampUS-e.lastGyroTS) / 1e6
		e.gyroSeen = true
		e.gyroSilent = 0

		if e.startupTime > 0 {
			e.startupTime -= e.wDeltaT
			if e.startupTime <= 0 {
				log.Println("ahrs: startup is over")
			}
		}

		e.w[0] = s.X
		e.w[1] = s.Y
		e.w[2] = s.Z
		e.wNorm = s.Norm()

		e.filter.predict(e.computeProcess())

		normalizeQuat(&e.filter.statePre)
		shortestPathQuat(&e.statePreHistory, &e.filter.statePre)

		// Keep the a-posteriori state fresh even if no correction runs
		// before the next prediction.
		e.filter.statePost = e.filter.statePre

		e.exportRotation()
	}
	e.lastGyroTS = s.TimestampUS
}

// OnAccel ingests a linear-acceleration sample (m/s²) and runs one correct
// cycle, folding in the cached magnetometer sample if one is fresh.
func (e *Estimator) OnAccel(s imu.Sample) {
	if e.lastAccelTS > 0 && s.TimestampUS > e.lastAccelTS {
		e.accelSeen = true
		e.accelSilent = 0

		e.a[0] = s.X
		e.a[1] = s.Y
		e.a[2] = s.Z
		e.aNorm = s.Norm()

		z, zPred := e.computeObservation()
		e.filter.correct(z, zPred)

		normalizeQuat(&e.filter.statePost)
		shortestPathQuat(&e.statePostHistory, &e.filter.statePost)

		e.exportRotation()
	}
	e.lastAccelTS = s.TimestampUS
}

// OnMag caches a magnetic-field sample (µT) for the next correction. It
// never triggers a filter cycle by itself; an unconsumed sample is silently
// overwritten by the next one.
func (e *Estimator) OnMag(s imu.Sample) {
	if e.lastMagTS > 0 && s.TimestampUS > e.lastMagTS {
		e.magSeen = true
		e.magSilent = 0

		e.m[0] = s.X
		e.m[1] = s.Y
		e.m[2] = s.Z
		e.mNorm = s.Norm()
		e.magReady = true
	}
	e.lastMagTS = s.TimestampUS
}

// Rotation returns the latest orientation output and whether one is
// available. No output exists until the startup countdown has elapsed.
func (e *Estimator) Rotation() (orientation.Rotation, bool) {
	return e.rot, e.haveRot
}

// Health returns the current sensor-liveness snapshot.
func (e *Estimator) Health() Health {
	return Health{
		GyroPresent:       e.gyroSeen,
		AccelPresent:      e.accelSeen,
		MagPresent:        e.magSeen,
		GyroSilentCycles:  e.gyroSilent,
		AccelSilentCycles: e.accelSilent,
		MagSilentCycles:   e.magSilent,
	}
}

// exportRotation runs once per output cycle: it advances the health
// counters, gates on startup, and extracts the axis-angle form of the
// a-posteriori quaternion.
func (e *Estimator) exportRotation() {
	if !e.gyroSeen {
		log.Println("ahrs: Error: cannot produce orientation without a gyroscope")
		return
	}
	e.gyroSilent++
	if e.gyroSilent == e.cfg.SilentCycleLimit+1 {
		log.Printf("ahrs: Warning: gyroscope silent for %d cycles", e.gyroSilent)
	}

	if !e.accelSeen {
		if !e.accelAbsentWarned {
			log.Println("ahrs: Warning: operating without an accelerometer, results will drift")
			e.accelAbsentWarned = true
		}
	} else {
		e.accelSilent++
		if e.accelSilent == e.cfg.SilentCycleLimit+1 {
			log.Printf("ahrs: Warning: accelerometer silent for %d cycles", e.accelSilent)
		}
	}

	if !e.magSeen {
		if !e.magAbsentWarned {
			log.Println("ahrs: Warning: operating without a magnetometer, results will drift")
			e.magAbsentWarned = true
		}
	} else {
		e.magSilent++
		if e.magSilent == e.cfg.SilentCycleLimit+1 {
			log.Printf("ahrs: Warning: magnetometer silent for %d cycles", e.magSilent)
		}
	}

	// No output during the startup phase.
	if e.startupTime > 0 {
		return
	}

	q := &e.filter.statePost
	angle := math.Sqrt(q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	angle = 2 * math.Atan2(angle, q[0])
	if angle < epsilon {
		// Near-identity: a unit axis would divide by a vanishing sine.
		e.rot = orientation.Rotation{}
	} else {
		sinHalf := math.Sin(angle / 2)
		e.rot = orientation.Rotation{
			AxisX:    q[1] / sinHalf,
			AxisY:    q[2] / sinHalf,
			AxisZ:    q[3] / sinHalf,
			AngleDeg: angle * 180 / math.Pi,
		}
	}
	e.haveRot = true
}
