// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/orientation_computer/internal/config"
	"github.com/relabs-tech/orientation_computer/internal/imu"
)

// Remote IMU heads stream proprietary NMEA 0183 sentences, one per sample:
//
//	$PRTGYR,<timestamp_us>,<x>,<y>,<z>*hh   angular velocity, rad/s
//	$PRTACC,<timestamp_us>,<x>,<y>,<z>*hh   linear acceleration, m/s²
//	$PRTMAG,<timestamp_us>,<x>,<y>,<z>*hh   magnetic field, µT
//
// The "P" marks them proprietary, so go-nmea hands us the remainder as the
// sentence type: RTGYR, RTACC, RTMAG.
const (
	TypeRTGYR = "RTGYR"
	TypeRTACC = "RTACC"
	TypeRTMAG = "RTMAG"
)

// RTVector is the payload shared by all three proprietary sentences.
type RTVector struct {
	nmea.BaseSentence
	TimestampUS uint64
	X           float64
	Y           float64
	Z           float64
}

func parseRTVector(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	v := RTVector{
		BaseSentence: s,
		TimestampUS:  uint64(p.Int64(0, "timestamp_us")),
		X:            p.Float64(1, "x"),
		Y:            p.Float64(2, "y"),
		Z:            p.Float64(3, "z"),
	}
	return v, p.Err()
}

func init() {
	for _, t := range []string{TypeRTGYR, TypeRTACC, TypeRTMAG} {
		if err := nmea.RegisterParser(t, parseRTVector); err != nil {
			// Only fails on duplicate registration of the same type.
			panic(fmt.Sprintf("sensors: register NMEA parser %s: %v", t, err))
		}
	}
}

// SampleHandlers receives decoded samples in arrival order. Handlers run on
// the Run goroutine, so delivery into an estimator needs no extra locking.
type SampleHandlers struct {
	OnGyro  func(imu.Sample)
	OnAccel func(imu.Sample)
	OnMag   func(imu.Sample)
}

// SerialSource decodes the proprietary sample sentences from a serial port.
type SerialSource struct {
	port io.ReadWriteCloser
}

// NewSerialSource opens the serial port named in the global config.
func NewSerialSource() (*SerialSource, error) {
	cfg := config.Get()

	serialOpts := serial.OpenOptions{
		PortName:              cfg.SerialPort,
		BaudRate:              uint(cfg.SerialBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("serial open (%s): %w", cfg.SerialPort, err)
	}
	log.Printf("serial port opened on %s at %d baud", cfg.SerialPort, cfg.SerialBaudRate)

	return &SerialSource{port: port}, nil
}

// Close releases the serial port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}

// Run reads sentences until the port errors out, dispatching each decoded
// sample to the matching handler. Malformed lines are skipped.
func (s *SerialSource) Run(h SampleHandlers) error {
	reader := bufio.NewReader(s.port)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("serial read: %w", err)
		}

		source, sample, err := decodeSampleLine(line)
		if err != nil {
			// Noisy links produce partial sentences; keep going.
			continue
		}

		switch source {
		case "gyro":
			if h.OnGyro != nil {
				h.OnGyro(sample)
			}
		case "accel":
			if h.OnAccel != nil {
				h.OnAccel(sample)
			}
		case "mag":
			if h.OnMag != nil {
				h.OnMag(sample)
			}
		}
	}
}

// decodeSampleLine parses one proprietary sentence into a sample. Sentences
// of other types, and anything that fails checksum or field validation, are
// rejected.
func decodeSampleLine(line string) (string, imu.Sample, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return "", imu.Sample{}, fmt.Errorf("not a sentence: %q", line)
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return "", imu.Sample{}, err
	}

	v, ok := sentence.(RTVector)
	if !ok {
		return "", imu.Sample{}, fmt.Errorf("unexpected sentence type %s", sentence.DataType())
	}

	var source string
	switch v.Type {
	case TypeRTGYR:
		source = "gyro"
	case TypeRTACC:
		source = "accel"
	case TypeRTMAG:
		source = "mag"
	default:
		return "", imu.Sample{}, fmt.Errorf("unexpected sentence type %s", v.Type)
	}

	return source, imu.Sample{
		Source:      source,
		TimestampUS: v.TimestampUS,
		X:           v.X,
		Y:           v.Y,
		Z:           v.Z,
	}, nil
}
