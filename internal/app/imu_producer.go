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
	"github.com/relabs-tech/orientation_computer/internal/sensors"
)

// RunIMUProducer polls the local MPU9250, feeds the samples through the
// orientation estimator, and publishes the fused rotation plus periodic
// health snapshots to MQTT.
func RunIMUProducer() error {
	log.Println("starting orientation-computer IMU producer (MPU9250 → EKF → MQTT)")

	cfg := config.Get()

	src, err := sensors.NewIMUSource()
	if err != nil {
		return err
	}

	est := ahrs.NewEstimator(cfg.Estimator)

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDIMUProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Println("connected to MQTT, starting sample loop")

	pub := newEstimatorPublisher(client, est,
		cfg.TopicRotation, cfg.TopicHealth,
		time.Duration(cfg.HealthInterval)*time.Millisecond)

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		// Gyro first: the prediction sets the integration step the
		// correction operates on.
		if g, err := src.ReadGyro(); err != nil {
			log.Printf("gyro read error: %v", err)
		} else {
			est.OnGyro(g)
		}

		if a, err := src.ReadAccel(); err != nil {
			log.Printf("accel read error: %v", err)
		} else {
			est.OnAccel(a)
		}

		pub.publish()
	}
	return nil
}
