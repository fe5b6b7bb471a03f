// Package gesture provides the reference-shape library and landmark similarity matching.
package gesture

import (
	"math"

	"github.com/ayusman/mudra/internal/detector"
)

// Similarity compares two landmark sets taken from the same extractor.
//
// The per-joint Euclidean distances are averaged and inverted as
// 1 - min(avg, 1), so the result always lies in [0,1]. Sets of different
// length, or empty sets, are not comparable and score 0. The comparison is
// neither scale nor rotation invariant.
func Similarity(a, b []detector.Point3D) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var total float64
	for i := range a {
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		dz := a[i].Z - b[i].Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}

	avg := total / float64(len(a))
	if math.IsNaN(avg) {
		return 0
	}
	return 1.0 - math.Min(avg, 1.0)
}
