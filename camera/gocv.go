//go:build !no_cgo

package camera

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/hyyh619/StereoVision/rimage"
)

// Webcam reads frames from a local video device through OpenCV.
type Webcam struct {
	deviceID int
	grey     bool

	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// OpenWebcam opens device deviceID and requests frames of size. A zero size keeps the device
// default.
func OpenWebcam(deviceID int, size image.Point, grey bool) (*Webcam, error) {
	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open webcam %d", deviceID)
	}
	if !capture.IsOpened() {
		//nolint:errcheck
		capture.Close()
		return nil, errors.Errorf("webcam %d is not available", deviceID)
	}
	if size.X > 0 && size.Y > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(size.X))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(size.Y))
	}
	return &Webcam{deviceID: deviceID, grey: grey, capture: capture}, nil
}

// Next grabs one frame. A device that delivers no pixels yields ErrEmptyFrame.
func (w *Webcam) Next(ctx context.Context) (*rimage.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	mat := gocv.NewMat()
	//nolint:errcheck
	defer mat.Close()
	if ok := w.capture.Read(&mat); !ok {
		return nil, errors.Errorf("cannot read webcam device: %d", w.deviceID)
	}
	if mat.Empty() {
		return nil, ErrEmptyFrame
	}
	return MatToImage(mat, w.grey)
}

// Close releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.capture.Close()
}

// MatToImage copies an 8-bit OpenCV matrix.
func MatToImage(mat gocv.Mat, grey bool) (*rimage.Image, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "cannot convert frame")
	}
	return rimage.NewImageFromStdImage(img, grey), nil
}

// Window is an OpenCV preview window.
type Window struct {
	window *gocv.Window
}

// NewWindow opens a window titled name.
func NewWindow(name string) (*Window, error) {
	return &Window{window: gocv.NewWindow(name)}, nil
}

// Show replaces the window contents with img.
func (w *Window) Show(img *rimage.Image) error {
	mat, err := gocv.ImageToMatRGB(img.ToStdImage())
	if err != nil {
		return errors.Wrap(err, "cannot convert preview")
	}
	//nolint:errcheck
	defer mat.Close()
	w.window.IMShow(mat)
	return nil
}

// WaitKey pumps window events for delay and returns the pressed key, or -1. A zero delay waits
// until a key is pressed.
func (w *Window) WaitKey(delay time.Duration) int {
	return w.window.WaitKey(int(delay / time.Millisecond))
}

// Close closes the window.
func (w *Window) Close() error {
	return w.window.Close()
}
