// Package testdata builds synthetic camera frames for tests.
package testdata

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Frame sizes match the default camera resolution.
const (
	Width  = 640
	Height = 480
)

// NewFrame returns a BGR frame filled with a single gray level.
// The caller owns the Mat.
func NewFrame(level uint8) gocv.Mat {
	mat := gocv.NewMatWithSize(Height, Width, gocv.MatTypeCV8UC3)
	if level > 0 {
		v := float64(level)
		mat.SetTo(gocv.NewScalar(v, v, v, 0))
	}
	return mat
}

// JPEG encodes a frame of the given gray level.
func JPEG(level uint8) ([]byte, error) {
	mat := NewFrame(level)
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// LoadSequence builds one frame per level, for driving a mock camera.
// closeAll releases every frame.
func LoadSequence(levels ...uint8) (frames []*gocv.Mat, closeAll func()) {
	frames = make([]*gocv.Mat, 0, len(levels))
	for _, level := range levels {
		mat := NewFrame(level)
		frames = append(frames, &mat)
	}
	return frames, func() {
		for _, f := range frames {
			f.Close()
		}
	}
}
