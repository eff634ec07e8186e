package sensors

import (
	"fmt"
	"math"
	"testing"
)

// sentence wraps a body in "$...*hh" with a valid NMEA checksum.
func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}

func TestDecodeSampleLine(t *testing.T) {
	cases := []struct {
		body       string
		wantSource string
		wantTS     uint64
		wantX      float64
		wantY      float64
		wantZ      float64
	}{
		{"PRTGYR,1724400000000000,0.01,-0.02,1.5707", "gyro", 1724400000000000, 0.01, -0.02, 1.5707},
		{"PRTACC,1724400000012345,0.12,-0.34,9.81", "accel", 1724400000012345, 0.12, -0.34, 9.81},
		{"PRTMAG,1724400000070000,21.5,5.0,-43.2", "mag", 1724400000070000, 21.5, 5.0, -43.2},
	}

	for _, c := range cases {
		line := sentence(c.body)
		source, s, err := decodeSampleLine(line + "\r\n")
		if err != nil {
			t.Fatalf("decodeSampleLine(%q) error: %v", line, err)
		}
		if source != c.wantSource || s.Source != c.wantSource {
			t.Errorf("%q decoded as source %q/%q, want %q", line, source, s.Source, c.wantSource)
		}
		if s.TimestampUS != c.wantTS {
			t.Errorf("%q timestamp = %d, want %d", line, s.TimestampUS, c.wantTS)
		}
		if math.Abs(s.X-c.wantX) > 1e-12 || math.Abs(s.Y-c.wantY) > 1e-12 || math.Abs(s.Z-c.wantZ) > 1e-12 {
			t.Errorf("%q vector = (%v, %v, %v), want (%v, %v, %v)",
				line, s.X, s.Y, s.Z, c.wantX, c.wantY, c.wantZ)
		}
	}
}

func TestDecodeSampleLineRejectsBadInput(t *testing.T) {
	bad := []string{
		"",
		"not a sentence",
		"$PRTGYR,1,0.0,0.0,0.0*FF",                       // wrong checksum
		sentence("PRTGYR,1,0.0,0.0"),                     // missing field
		sentence("PRTGYR,yesterday,0.0,0.0,0.0"),         // non-numeric timestamp
		sentence("PRTXXX,1,0.0,0.0,0.0"),                 // unknown proprietary type
		sentence("GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W"), // standard NMEA
	}

	for _, line := range bad {
		if _, _, err := decodeSampleLine(line); err == nil {
			t.Errorf("decodeSampleLine(%q) accepted bad input", line)
		}
	}
}
