package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/orientation_computer/internal/ahrs"
	"github.com/relabs-tech/orientation_computer/internal/config"
	"github.com/relabs-tech/orientation_computer/internal/orientation"
)

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to rotation
	rotToken := client.Subscribe(cfg.TopicRotation, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r orientation.Rotation
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: rotation unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[ROT ]  AXIS=(%6.3f, %6.3f, %6.3f)  ANGLE=%7.2f°\n",
			r.AxisX, r.AxisY, r.AxisZ, r.AngleDeg,
		)
	})
	rotToken.Wait()
	if rotToken.Error() != nil {
		return rotToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicRotation)

	// Subscribe to health
	if cfg.TopicHealth != "" {
		healthToken := client.Subscribe(cfg.TopicHealth, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var h ahrs.Health
			if err := json.Unmarshal(msg.Payload(), &h); err != nil {
				log.Printf("console: health unmarshal error: %v", err)
				return
			}

			fmt.Printf(
				"[HLTH]  gyro=%v/%d  accel=%v/%d  mag=%v/%d\n",
				h.GyroPresent, h.GyroSilentCycles,
				h.AccelPresent, h.AccelSilentCycles,
				h.MagPresent, h.MagSilentCycles,
			)
		})
		healthToken.Wait()
		if healthToken.Error() != nil {
			return healthToken.Error()
		}
		log.Printf("console: subscribed to %s", cfg.TopicHealth)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
