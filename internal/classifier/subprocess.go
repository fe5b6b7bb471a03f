package classifier

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/modelproc"
)

// ScriptName is the classifier service shipped in scripts/.
const ScriptName = "sign_classifier.py"

// SubprocessConfig configures the Python classifier service.
type SubprocessConfig struct {
	Script string
	Python string
	Model  string
}

// Subprocess classifies regions with a Python model service.
type Subprocess struct {
	proc *modelproc.Process
}

// NewSubprocess locates the classifier script and prepares the service.
func NewSubprocess(config SubprocessConfig) (*Subprocess, error) {
	scriptPath := modelproc.FindScript(config.Script, ScriptName)
	if scriptPath == "" {
		return nil, fmt.Errorf("%s: %w", ScriptName, modelproc.ErrScriptNotFound)
	}

	var args []string
	if config.Model != "" {
		args = append(args, "--model", config.Model)
	}

	return &Subprocess{
		proc: modelproc.New(modelproc.Config{
			Script: scriptPath,
			Python: config.Python,
			Args:   args,
		}),
	}, nil
}

type classifyResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

// Classify sends the region as JPEG and returns the top label.
func (s *Subprocess) Classify(ctx context.Context, region gocv.Mat) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, region)
	if err != nil {
		return Prediction{}, fmt.Errorf("encode region: %w", err)
	}
	defer buf.Close()

	var resp classifyResponse
	if err := s.proc.Call(buf.GetBytes(), &resp); err != nil {
		return Prediction{}, fmt.Errorf("classify: %w", err)
	}
	return resp.prediction()
}

func (r classifyResponse) prediction() (Prediction, error) {
	if r.Error != "" {
		return Prediction{}, fmt.Errorf("classify: %s", r.Error)
	}
	if r.Label == "" {
		return Prediction{}, errors.New("classify: empty label")
	}
	return Prediction{Label: r.Label, Confidence: clamp01(r.Confidence)}, nil
}

// Close stops the service.
func (s *Subprocess) Close() error {
	return s.proc.Close()
}
