// Package camera reads frames from cameras and image files and shows previews.
package camera

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/hyyh619/StereoVision/rimage"
)

// ErrEmptyFrame is returned when a device delivers a frame without pixels.
var ErrEmptyFrame = errors.New("empty camera frame")

// A FrameSource produces frames one at a time.
type FrameSource interface {
	// Next returns the next frame. io.EOF means the source is exhausted.
	Next(ctx context.Context) (*rimage.Image, error)
	Close() error
}

// PairSource reads the two views of a stereo rig together.
type PairSource struct {
	Left, Right FrameSource
}

// NewPairSource combines two sources.
func NewPairSource(left, right FrameSource) *PairSource {
	return &PairSource{Left: left, Right: right}
}

// Next grabs one frame from each view concurrently.
func (ps *PairSource) Next(ctx context.Context) (*rimage.Image, *rimage.Image, error) {
	var left, right *rimage.Image
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		left, err = ps.Left.Next(ctx)
		return errors.Wrap(err, "left camera")
	})
	group.Go(func() error {
		var err error
		right, err = ps.Right.Next(ctx)
		return errors.Wrap(err, "right camera")
	})
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// Close closes both views.
func (ps *PairSource) Close() error {
	return multierr.Combine(ps.Left.Close(), ps.Right.Close())
}

// FileSource replays image files in order.
type FileSource struct {
	paths []string
	grey  bool

	mu   sync.Mutex
	next int
}

// NewFileSource reads paths one per call, as grey images when grey is set.
func NewFileSource(paths []string, grey bool) *FileSource {
	return &FileSource{paths: append([]string(nil), paths...), grey: grey}
}

// Next reads the next file, io.EOF after the last one.
func (fs *FileSource) Next(ctx context.Context) (*rimage.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	if fs.next >= len(fs.paths) {
		fs.mu.Unlock()
		return nil, io.EOF
	}
	path := fs.paths[fs.next]
	fs.next++
	fs.mu.Unlock()
	return rimage.ReadImage(path, fs.grey)
}

// Close is a no-op.
func (fs *FileSource) Close() error {
	return nil
}
