// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/orientation_computer/internal/ahrs"
	"github.com/relabs-tech/orientation_computer/internal/config"
	"github.com/relabs-tech/orientation_computer/internal/imu"
	"github.com/relabs-tech/orientation_computer/internal/sensors"
)

// RunSerialProducer reads sample sentences from a remote IMU head on the
// serial port, fuses them, and publishes rotation and health to MQTT. This is
// the path that carries magnetometer data; the sentences arrive timestamped
// at the source, so the estimator uses the remote clock.
func RunSerialProducer() error {
	log.Println("starting orientation-computer serial producer (NMEA → EKF → MQTT)")

	cfg := config.Get()

	src, err := sensors.NewSerialSource()
	if err != nil {
		return err
	}
	defer src.Close()

	est := ahrs.NewEstimator(cfg.Estimator)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDSerialProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Println("connected to MQTT, starting serial read loop")

	pub := newEstimatorPublisher(client, est,
		cfg.TopicRotation, cfg.TopicHealth,
		time.Duration(cfg.HealthInterval)*time.Millisecond)

	// All handlers run on this goroutine, in sentence arrival order, which
	// is exactly the serialization the estimator requires.
	return src.Run(sensors.SampleHandlers{
		OnGyro: func(s imu.Sample) {
			est.OnGyro(s)
			pub.publish()
		},
		OnAccel: func(s imu.Sample) {
			est.OnAccel(s)
			pub.publish()
		},
		OnMag: func(s imu.Sample) {
			est.OnMag(s)
		},
	})
}
