// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/orientation_computer/internal/ahrs"
)

// estimatorPublisher pushes estimator output to MQTT: the rotation after
// every filter cycle, the health snapshot on a fixed interval.
type estimatorPublisher struct {
	client mqtt.Client
	est    *ahrs.Estimator

	topicRotation string
	topicHealth   string

	healthInterval time.Duration
	lastHealth     time.Time
}

func newEstimatorPublisher(client mqtt.Client, est *ahrs.Estimator, topicRotation, topicHealth string, healthInterval time.Duration) *estimatorPublisher {
	return &estimatorPublisher{
		client:         client,
		est:            est,
		topicRotation:  topicRotation,
		topicHealth:    topicHealth,
		healthInterval: healthInterval,
	}
}

// publish is called after each batch of samples has been delivered.
func (p *estimatorPublisher) publish() {
	if rot, ok := p.est.Rotation(); ok {
		payload, err := json.Marshal(rot)
		if err != nil {
			log.Printf("rotation marshal error: %v", err)
		} else if token := p.client.Publish(p.topicRotation, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (%s): %v", p.topicRotation, token.Error())
		}
	}

	if p.topicHealth == "" || p.healthInterval <= 0 {
		return
	}
	if now := time.Now(); now.Sub(p.lastHealth) >= p.healthInterval {
		p.lastHealth = now
		payload, err := json.Marshal(p.est.Health())
		if err != nil {
			log.Printf("health marshal error: %v", err)
			return
		}
		if token := p.client.Publish(p.topicHealth, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (%s): %v", p.topicHealth, token.Error())
		}
	}
}
