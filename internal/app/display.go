package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/orientation_computer/internal/ahrs"
	"github.com/relabs-tech/orientation_computer/internal/config"
	"github.com/relabs-tech/orientation_computer/internal/orientation"
)

// displayData holds the latest data for display
type displayData struct {
	mu sync.RWMutex

	rot     orientation.Rotation
	haveRot bool

	health     ahrs.Health
	haveHealth bool
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: SSD1306 initialized")

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &displayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to rotation
	rotToken := client.Subscribe(cfg.TopicRotation, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r orientation.Rotation
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: rotation unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.rot = r
		data.haveRot = true
		data.mu.Unlock()
	})
	rotToken.Wait()
	if rotToken.Error() != nil {
		return rotToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicRotation)

	// Subscribe to health
	if cfg.TopicHealth != "" {
		healthToken := client.Subscribe(cfg.TopicHealth, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var h ahrs.Health
			if err := json.Unmarshal(msg.Payload(), &h); err != nil {
				log.Printf("display: health unmarshal error: %v", err)
				return
			}
			data.mu.Lock()
			data.health = h
			data.haveHealth = true
			data.mu.Unlock()
		})
		healthToken.Wait()
		if healthToken.Error() != nil {
			return healthToken.Error()
		}
		log.Printf("display: subscribed to %s", cfg.TopicHealth)
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		rot, haveRot := data.rot, data.haveRot
		health, haveHealth := data.health, data.haveHealth
		data.mu.RUnlock()

		if err := updateRotationDisplay(dev, rot, haveRot, health, haveHealth); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func newTextDrawer(img *image1bit.VerticalLSB) *font.Drawer {
	return &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
}

func blankImage() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}
	return img
}

func updateRotationDisplay(dev *ssd1306.Dev, rot orientation.Rotation, haveRot bool, health ahrs.Health, haveHealth bool) error {
	img := blankImage()
	drawer := newTextDrawer(img)

	if !haveRot {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Orientation"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
	} else {
		drawer.Dot = fixed.P(0, 13)
		drawer.DrawBytes([]byte(fmt.Sprintf("X: %6.3f", rot.AxisX)))

		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte(fmt.Sprintf("Y: %6.3f", rot.AxisY)))

		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("Z: %6.3f", rot.AxisZ)))

		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("A: %6.1f %s", rot.AngleDeg, healthMarks(health, haveHealth))))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

// quietCycles is how many output cycles without data before a sensor is
// shown as quiet. A flowing sensor sits at a handful of cycles between
// deliveries, so this only trips on real gaps.
const quietCycles = 100

// healthMarks compresses sensor liveness into a three-letter status, one
// letter per sensor; lowercase means the sensor went quiet.
func healthMarks(h ahrs.Health, have bool) string {
	if !have {
		return ""
	}
	marks := []byte("---")
	if h.GyroPresent {
		marks[0] = 'G'
		if h.GyroSilentCycles > quietCycles {
			marks[0] = 'g'
		}
	}
	if h.AccelPresent {
		marks[1] = 'A'
		if h.AccelSilentCycles > quietCycles {
			marks[1] = 'a'
		}
	}
	if h.MagPresent {
		marks[2] = 'M'
		if h.MagSilentCycles > quietCycles {
			marks[2] = 'm'
		}
	}
	return string(marks)
}

func showSplash(dev *ssd1306.Dev) error {
	img := blankImage()
	drawer := newTextDrawer(img)

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Orientation Pi"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("samples"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
