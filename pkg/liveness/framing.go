package liveness

// Viewport is the geometry of the circular preview guide. The preview is a
// PreviewSize square placed PreviewTopMargin below the top of the window and
// centered horizontally in a window WindowWidth wide.
type Viewport struct {
	PreviewSize      float64
	PreviewTopMargin float64
	WindowWidth      float64
}

// DefaultViewport returns the standard preview geometry for a 390pt wide screen.
func DefaultViewport() Viewport {
	return Viewport{
		PreviewSize:      350,
		PreviewTopMargin: 50,
		WindowWidth:      390,
	}
}

// Contains reports whether the face center lies strictly inside the
// preview's vertical and horizontal span. Faces on the edge are rejected.
func (v Viewport) Contains(b BoundingBox) bool {
	midX, midY := b.Center()

	if midY <= v.PreviewTopMargin || midY >= v.PreviewTopMargin+v.PreviewSize {
		return false
	}

	half := v.PreviewSize / 2
	center := v.WindowWidth / 2
	if midX <= center-half || midX >= center+half {
		return false
	}
	return true
}
