package capture

import (
	"errors"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
)

// Region defaults.
const (
	// DefaultPadding is added around the joints on every side, in pixels.
	DefaultPadding = 20
	// MinRegionSide is the side length a region must exceed to be classified.
	MinRegionSide = 10
)

// ErrNoHandRegion is returned when landmarks do not produce a usable box.
var ErrNoHandRegion = errors.New("no hand region")

// HandRegion returns the padded pixel bounding box of the joints, clamped to
// a width x height image. Normalized coordinates are truncated to pixels.
func HandRegion(width, height int, points []detector.Point3D, padding int) (image.Rectangle, error) {
	if len(points) == 0 || width <= 0 || height <= 0 {
		return image.Rectangle{}, ErrNoHandRegion
	}

	minX, minY := width, height
	maxX, maxY := 0, 0
	for _, p := range points {
		x := int(p.X * float64(width))
		y := int(p.Y * float64(height))
		minX = min(minX, x)
		minY = min(minY, y)
		maxX = max(maxX, x)
		maxY = max(maxY, y)
	}

	box := image.Rect(minX-padding, minY-padding, maxX+padding, maxY+padding)
	box = box.Intersect(image.Rect(0, 0, width, height))
	if box.Empty() {
		return image.Rectangle{}, ErrNoHandRegion
	}
	return box, nil
}

// Classifiable reports whether a region is large enough for the classifier.
func Classifiable(box image.Rectangle) bool {
	return box.Dx() > MinRegionSide && box.Dy() > MinRegionSide
}

// Crop copies the box out of frame. The caller closes the returned Mat.
func Crop(frame gocv.Mat, box image.Rectangle) gocv.Mat {
	region := frame.Region(box)
	defer region.Close()
	return region.Clone()
}
