package liveness

// BoundingBox is a face region in preview coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (x, y float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// FaceMeasurement is what the face detector reports for one face in one
// processed frame. Angles are in degrees, probabilities in [0,1].
type FaceMeasurement struct {
	Bounds                  BoundingBox `json:"bounds"`
	RollAngle               float64     `json:"rollAngle"`
	YawAngle                float64     `json:"yawAngle"`
	SmilingProbability      float64     `json:"smilingProbability"`
	LeftEyeOpenProbability  float64     `json:"leftEyeOpenProbability"`
	RightEyeOpenProbability float64     `json:"rightEyeOpenProbability"`
}
