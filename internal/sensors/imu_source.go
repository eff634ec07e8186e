// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/orientation_computer/internal/config"
	"github.com/relabs-tech/orientation_computer/internal/imu"
)

// IMUReader reads one gyroscope and one accelerometer sample per call,
// already converted to physical units and timestamped.
type IMUReader interface {
	ReadGyro() (imu.Sample, error)
	ReadAccel() (imu.Sample, error)
}

type imuSource struct {
	imu *mpu9250.MPU9250

	// LSB per physical unit at the configured full-scale ranges.
	accelScale float64 // LSB per g
	gyroScale  float64 // LSB per °/s
}

// NewIMUSource initializes the MPU9250 over SPI per the global config and
// returns a reader producing samples in m/s² and rad/s.
func NewIMUSource() (IMUReader, error) {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.IMUSPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	// Apply configured sensor ranges
	if err := dev.SetAccelRange(cfg.IMUAccelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Printf("IMU: accelerometer range set to %d (±%dg)", cfg.IMUAccelRange, []int{2, 4, 8, 16}[cfg.IMUAccelRange])

	if err := dev.SetGyroRange(cfg.IMUGyroRange); err != nil {
		return nil, fmt.Errorf("IMU: set gyro range: %w", err)
	}
	log.Printf("IMU: gyroscope range set to %d (±%d°/s)", cfg.IMUGyroRange, []int{250, 500, 1000, 2000}[cfg.IMUGyroRange])

	// Self-test
	if _, err := dev.SelfTest(); err != nil {
		log.Printf("Warning: IMU self-test failed: %v", err)
	} else {
		log.Println("IMU self-test passed")
	}

	// Calibration (device must be at rest)
	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: IMU calibration failed: %v", err)
	} else {
		log.Println("IMU calibration complete")
	}

	return &imuSource{
		imu: dev,
		// 16384 LSB/g at ±2g, halved per range step.
		accelScale: float64(int(16384) >> cfg.IMUAccelRange),
		// 131 LSB/(°/s) at ±250°/s, halved per range step.
		gyroScale: 131.0 / float64(int(1)<<cfg.IMUGyroRange),
	}, nil
}

// nowMicros is the sample timestamp source; monotonic within a process run.
func nowMicros() uint64 {
	return uint64(time.Now().UnixNano() / 1000)
}

// ReadGyro reads the gyroscope and returns angular velocity in rad/s.
func (s *imuSource) ReadGyro() (imu.Sample, error) {
	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU gyro Z: %w", err)
	}

	k := (math.Pi / 180.0) / s.gyroScale
	return imu.Sample{
		Source:      "gyro",
		TimestampUS: nowMicros(),
		X:           float64(gx) * k,
		Y:           float64(gy) * k,
		Z:           float64(gz) * k,
	}, nil
}

// ReadAccel reads the accelerometer and returns acceleration in m/s².
func (s *imuSource) ReadAccel() (imu.Sample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	k := 9.81 / s.accelScale
	return imu.Sample{
		Source:      "accel",
		TimestampUS: nowMicros(),
		X:           float64(ax) * k,
		Y:           float64(ay) * k,
		Z:           float64(az) * k,
	}, nil
}
