package orientation

// Rotation is the canonical orientation output: a unit rotation axis (or the
// zero vector for no rotation) and an angle in degrees, range [0,360).
type Rotation struct {
	AxisX    float64 `json:"axis_x"`
	AxisY    float64 `json:"axis_y"`
	AxisZ    float64 `json:"axis_z"`
	AngleDeg float64 `json:"angle_deg"`
}

// Source is anything that can provide rotations over time: the fused
// estimator, a mock source, maybe a replay source from file later.
type Source interface {
	Next() (Rotation, error)
}
