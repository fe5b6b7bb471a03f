package detector

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/modelproc"
)

// ScriptName is the landmark service shipped in scripts/.
const ScriptName = "hand_landmarks.py"

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
type MediaPipeDetector struct {
	config Config
	proc   *modelproc.Process
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := modelproc.FindScript(config.Script, ScriptName)
	if scriptPath == "" {
		return nil, fmt.Errorf("%s: %w", ScriptName, modelproc.ErrScriptNotFound)
	}

	proc := modelproc.New(modelproc.Config{
		Script: scriptPath,
		Python: config.Python,
		Args: []string{
			"--max-hands", strconv.Itoa(config.MaxHands),
			"--min-detection-confidence", strconv.FormatFloat(config.MinConfidence, 'f', -1, 64),
			"--min-tracking-confidence", strconv.FormatFloat(config.MinTrackingConf, 'f', -1, 64),
		},
	})

	return &MediaPipeDetector{
		config: config,
		proc:   proc,
	}, nil
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := d.proc.Call(buf.GetBytes(), &response); err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}

	return result, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	return d.proc.Close()
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// toHandLandmarks keeps every point the service reported; Validate rejects short sets.
func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
		Points:     make([]Point3D, len(h.Points)),
	}

	for i, p := range h.Points {
		lm.Points[i] = Point3D{X: p.X, Y: p.Y, Z: p.Z}
	}

	return lm
}
