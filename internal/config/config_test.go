package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orientation_config.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
# comment line
MQTT_BROKER=tcp://localhost:1883
TOPIC_ROTATION=orientation/rotation
TOPIC_HEALTH = orientation/health
IMU_SAMPLE_INTERVAL=10
IMU_ACCEL_RANGE=1
IMU_GYRO_RANGE=2
SERIAL_PORT=/dev/ttyUSB0
SERIAL_BAUD_RATE=115200
WEB_SERVER_PORT=8080

PROCESS_NOISE=2e-4
SILENT_CYCLE_LIMIT=500
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	if cfg.TopicHealth != "orientation/health" {
		t.Errorf("TopicHealth = %q, whitespace not trimmed?", cfg.TopicHealth)
	}
	if cfg.IMUAccelRange != 1 || cfg.IMUGyroRange != 2 {
		t.Errorf("ranges = %d/%d, want 1/2", cfg.IMUAccelRange, cfg.IMUGyroRange)
	}
	if cfg.SerialBaudRate != 115200 {
		t.Errorf("SerialBaudRate = %d", cfg.SerialBaudRate)
	}

	// File keys override estimator defaults; untouched keys keep them.
	if cfg.Estimator.ProcessNoise != 2e-4 {
		t.Errorf("ProcessNoise = %v, want override 2e-4", cfg.Estimator.ProcessNoise)
	}
	if cfg.Estimator.SilentCycleLimit != 500 {
		t.Errorf("SilentCycleLimit = %v, want override 500", cfg.Estimator.SilentCycleLimit)
	}
	if cfg.Estimator.MeanAlpha != 0.99 {
		t.Errorf("MeanAlpha = %v, want default 0.99", cfg.Estimator.MeanAlpha)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"missing broker":    "TOPIC_ROTATION=r\nIMU_SAMPLE_INTERVAL=10\n",
		"missing topic":     "MQTT_BROKER=b\nIMU_SAMPLE_INTERVAL=10\n",
		"missing interval":  "MQTT_BROKER=b\nTOPIC_ROTATION=r\n",
		"unknown key":       "MQTT_BROKER=b\nTOPIC_ROTATION=r\nIMU_SAMPLE_INTERVAL=10\nNO_SUCH_KEY=1\n",
		"malformed line":    "MQTT_BROKER=b\nTOPIC_ROTATION=r\nIMU_SAMPLE_INTERVAL=10\njust words\n",
		"bad accel range":   "MQTT_BROKER=b\nTOPIC_ROTATION=r\nIMU_SAMPLE_INTERVAL=10\nIMU_ACCEL_RANGE=7\n",
		"non-numeric float": "MQTT_BROKER=b\nTOPIC_ROTATION=r\nIMU_SAMPLE_INTERVAL=10\nPROCESS_NOISE=tiny\n",
	}

	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%s: Load accepted invalid config", name)
		}
	}
}
