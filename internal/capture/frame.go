package capture

import (
	"encoding/base64"
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrInvalidImage is returned for bytes that do not decode to an image.
var ErrInvalidImage = errors.New("invalid image data")

// Decode decodes an encoded image (JPEG, PNG, ...) into a BGR frame.
// On success the caller is responsible for closing the returned Mat.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, ErrInvalidImage
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, ErrInvalidImage
	}
	return mat, nil
}

// EncodeJPEG encodes a frame as JPEG.
func EncodeJPEG(frame gocv.Mat) ([]byte, error) {
	if frame.Empty() {
		return nil, ErrInvalidImage
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// EncodeBase64JPEG encodes a frame as a base64 JPEG string.
func EncodeBase64JPEG(frame gocv.Mat) (string, error) {
	data, err := EncodeJPEG(frame)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
