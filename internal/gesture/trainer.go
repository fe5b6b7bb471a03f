package gesture

import (
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
)

// Average merges several captures of the same word into one reference shape
// by averaging each joint across samples.
func Average(samples [][]detector.Point3D) ([]detector.Point3D, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	numPoints := len(samples[0])
	if numPoints == 0 {
		return nil, fmt.Errorf("sample 0 has no landmarks")
	}

	for i, landmarks := range samples {
		if len(landmarks) != numPoints {
			return nil, fmt.Errorf("sample %d has %d landmarks, expected %d", i, len(landmarks), numPoints)
		}
	}

	if len(samples) == 1 {
		return detector.Clone(samples[0]), nil
	}

	averaged := make([]detector.Point3D, numPoints)
	n := float64(len(samples))

	for i := 0; i < numPoints; i++ {
		var sumX, sumY, sumZ float64
		for _, landmarks := range samples {
			sumX += landmarks[i].X
			sumY += landmarks[i].Y
			sumZ += landmarks[i].Z
		}
		averaged[i] = detector.Point3D{
			X: sumX / n,
			Y: sumY / n,
			Z: sumZ / n,
		}
	}

	return averaged, nil
}
