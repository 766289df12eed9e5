package editor

import "math"

const (
	// DefaultMaxWidth is the widest the canvas grows.
	DefaultMaxWidth = 600
	// AspectRatio is canvas height over width.
	AspectRatio = 0.7
)

// Layout sizes the canvas for a container: the width is the container
// width capped at maxWidth, the height is 0.7 of the width. A non-positive
// container width means "unknown" and yields the maximum size.
func Layout(containerWidth, maxWidth int) (width, height int) {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	width = maxWidth
	if containerWidth > 0 {
		width = min(containerWidth, maxWidth)
	}
	height = max(1, int(math.Round(float64(width)*AspectRatio)))
	return width, height
}
