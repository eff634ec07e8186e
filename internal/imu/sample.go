package imu

import "math"

// Sample is a single timestamped 3-axis sensor reading. The same shape
// carries all three sensor roles: gyroscope samples are in rad/s,
// accelerometer samples in m/s², magnetometer samples in µT.
type Sample struct {
	Source string `json:"source,omitempty"` // "gyro", "accel" or "mag"

	TimestampUS uint64 `json:"ts_us"` // monotonic, microseconds

	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean magnitude of the sample vector.
func (s Sample) Norm() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}
