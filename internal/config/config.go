package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/orientation_computer/internal/ahrs"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker                 string
	MQTTClientIDIMUProducer    string
	MQTTClientIDSerialProducer string
	MQTTClientIDConsole        string
	MQTTClientIDWeb            string
	MQTTClientIDDisplay        string

	// Topics
	TopicRotation string
	TopicHealth   string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Serial frontend (remote IMU streaming NMEA-style sentences)
	SerialPort     string
	SerialBaudRate int

	// Timing
	IMUSampleInterval int // milliseconds
	HealthInterval    int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds

	// Estimator tunables; file keys override DefaultConfig values.
	Estimator ahrs.Config
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: RWMutex protects concurrent access across goroutines.
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{Estimator: ahrs.DefaultConfig()}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_IMU_PRODUCER":
		c.MQTTClientIDIMUProducer = value
	case "MQTT_CLIENT_ID_SERIAL_PRODUCER":
		c.MQTTClientIDSerialProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_ROTATION":
		c.TopicRotation = value
	case "TOPIC_HEALTH":
		c.TopicHealth = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// Serial frontend
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.IMUSampleInterval = interval
	case "HEALTH_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HEALTH_INTERVAL %q: %w", value, err)
		}
		c.HealthInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	// Estimator tunables
	case "STARTUP_TIME":
		return c.setEstimatorFloat(&c.Estimator.StartupTime, key, value)
	case "R_G_STARTUP":
		return c.setEstimatorFloat(&c.Estimator.RGStartup, key, value)
	case "R_Y_STARTUP":
		return c.setEstimatorFloat(&c.Estimator.RYStartup, key, value)
	case "R_G_K0":
		return c.setEstimatorFloat(&c.Estimator.RGK0, key, value)
	case "R_G_KW":
		return c.setEstimatorFloat(&c.Estimator.RGKW, key, value)
	case "R_G_KG":
		return c.setEstimatorFloat(&c.Estimator.RGKG, key, value)
	case "R_Y_K0":
		return c.setEstimatorFloat(&c.Estimator.RYK0, key, value)
	case "R_Y_KW":
		return c.setEstimatorFloat(&c.Estimator.RYKW, key, value)
	case "R_Y_KG":
		return c.setEstimatorFloat(&c.Estimator.RYKG, key, value)
	case "R_Y_KN":
		return c.setEstimatorFloat(&c.Estimator.RYKN, key, value)
	case "R_Y_KD":
		return c.setEstimatorFloat(&c.Estimator.RYKD, key, value)
	case "PROCESS_NOISE":
		return c.setEstimatorFloat(&c.Estimator.ProcessNoise, key, value)
	case "MEAN_ALPHA":
		return c.setEstimatorFloat(&c.Estimator.MeanAlpha, key, value)
	case "SILENT_CYCLE_LIMIT":
		limit, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SILENT_CYCLE_LIMIT %q: %w", value, err)
		}
		c.Estimator.SilentCycleLimit = limit

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func (c *Config) setEstimatorFloat(dst *float64, key, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = f
	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicRotation == "" {
		return fmt.Errorf("TOPIC_ROTATION is required")
	}
	if c.IMUSampleInterval == 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file. Uses sync.Once
// so this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be called
// first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
