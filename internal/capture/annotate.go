package capture

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
)

var (
	landmarkColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	jointColor    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	titleColor    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	altColor      = color.RGBA{R: 255, G: 155, B: 0, A: 0}
)

// Annotation is what gets drawn onto a debug frame.
type Annotation struct {
	Landmarks []detector.Point3D
	Box       image.Rectangle
	Title     string
	Lines     []string
}

// WordTitle formats the banner shown for a word match.
func WordTitle(name string, similarity float64) string {
	return fmt.Sprintf("WORD: %s (%.2f)", name, similarity)
}

// AltLine formats the n-th alternative, counting from 1.
func AltLine(n int, name string, similarity float64) string {
	return fmt.Sprintf("Alt %d: %s (%.2f)", n, name, similarity)
}

// Annotate returns a copy of frame with the annotation drawn on it.
// The caller is responsible for closing the returned Mat.
func Annotate(frame gocv.Mat, a Annotation) gocv.Mat {
	img := frame.Clone()
	if img.Empty() {
		return img
	}

	w, h := img.Cols(), img.Rows()
	toPixel := func(p detector.Point3D) image.Point {
		return image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
	}

	if len(a.Landmarks) >= detector.NumLandmarks {
		for _, c := range detector.Connections {
			gocv.Line(&img, toPixel(a.Landmarks[c[0]]), toPixel(a.Landmarks[c[1]]), landmarkColor, 2)
		}
	}
	for _, p := range a.Landmarks {
		gocv.Circle(&img, toPixel(p), 3, jointColor, -1)
	}

	if !a.Box.Empty() {
		gocv.Rectangle(&img, a.Box, landmarkColor, 2)
	}

	if a.Title != "" {
		gocv.PutText(&img, a.Title, image.Pt(10, 30), gocv.FontHersheySimplex, 1, titleColor, 2)
	}
	for i, line := range a.Lines {
		gocv.PutText(&img, line, image.Pt(10, 60+i*30), gocv.FontHersheySimplex, 0.7, altColor, 2)
	}

	return img
}
