//go:build no_cgo

package camera

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"

	"github.com/hyyh619/StereoVision/rimage"
)

var errNoCGO = errors.New("camera support requires cgo")

// Webcam is unavailable without cgo.
type Webcam struct{}

// OpenWebcam always fails without cgo.
func OpenWebcam(deviceID int, size image.Point, grey bool) (*Webcam, error) {
	return nil, errors.Wrapf(errNoCGO, "webcam %d", deviceID)
}

// Next always fails without cgo.
func (w *Webcam) Next(ctx context.Context) (*rimage.Image, error) {
	return nil, errNoCGO
}

// Close is a no-op.
func (w *Webcam) Close() error {
	return nil
}

// Window is unavailable without cgo.
type Window struct{}

// NewWindow always fails without cgo.
func NewWindow(name string) (*Window, error) {
	return nil, errors.Wrapf(errNoCGO, "window %q", name)
}

// Show always fails without cgo.
func (w *Window) Show(img *rimage.Image) error {
	return errNoCGO
}

// WaitKey returns -1.
func (w *Window) WaitKey(delay time.Duration) int {
	return -1
}

// Close is a no-op.
func (w *Window) Close() error {
	return nil
}
