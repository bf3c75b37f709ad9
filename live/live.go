// Package live runs the stereo pipeline on a camera pair with an interactive preview.
package live

import (
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/hyyh619/StereoVision/logging"
	"github.com/hyyh619/StereoVision/report"
	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/stereo"
)

// Keys handled by the preview loop.
const (
	KeyEscape = 27
	KeyEnter  = 13
	KeySpace  = 32
	KeyDepth  = 'd'
)

// DefaultKeyDelay is how long the preview waits for a key after each frame.
const DefaultKeyDelay = 20 * time.Millisecond

// A Source produces raw stereo pairs. io.EOF ends the loop normally.
type Source interface {
	Next(ctx context.Context) (*rimage.Image, *rimage.Image, error)
}

// A Display shows previews and reports key presses.
type Display interface {
	Show(img *rimage.Image) error
	// WaitKey returns the pressed key or a negative value when none was pressed within delay.
	WaitKey(delay time.Duration) int
}

// Loop configures Run.
type Loop struct {
	Logger  logging.Logger
	Source  Source
	Display Display
	// NewSession builds the session once the first left frame is known, so the matcher can be
	// initialised from its channel count and width.
	NewSession func(first *rimage.Image) (*stereo.Session, error)
	// Output receives snapshots. Snapshots are disabled when nil.
	Output   *report.Output
	KeyDelay time.Duration
	// MaxFrames stops the loop after that many frames when positive.
	MaxFrames int
}

// Stats summarises a finished loop.
type Stats struct {
	Frames    int
	Snapshots int
	Durations []time.Duration
}

// Run grabs, processes and previews pairs until ESC is pressed, the source ends or ctx is done.
// Enter or space saves the raw pair and d logs the 3D point at the centre of the disparity map.
// A pair with an empty view ends the loop with stereo.ErrEmptyImage.
func Run(ctx context.Context, loop Loop) (Stats, error) {
	var stats Stats
	if loop.Source == nil || loop.Display == nil || loop.NewSession == nil {
		return stats, errors.New("live loop needs a source, a display and a session constructor")
	}
	delay := loop.KeyDelay
	if delay <= 0 {
		delay = DefaultKeyDelay
	}

	var session *stereo.Session
	for loop.MaxFrames <= 0 || stats.Frames < loop.MaxFrames {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		left, right, err := loop.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		if left.Empty() || right.Empty() {
			return stats, errors.Wrap(stereo.ErrEmptyImage, "couldn't grab the next camera frame")
		}
		if session == nil {
			if session, err = loop.NewSession(left); err != nil {
				return stats, err
			}
		}

		frame, err := session.Process(left, right)
		if err != nil {
			return stats, err
		}
		stats.Frames++
		stats.Durations = append(stats.Durations, frame.Elapsed)
		loop.Logger.Infof("#%d---Time elapsed: %.3fms", stats.Frames, float64(frame.Elapsed)/float64(time.Millisecond))

		preview := Preview(left, right, frame.Normalized)
		if frame.Grid != nil {
			preview = AnnotateGrid(preview, image.Pt(0, max(left.Height(), right.Height())), session.Region(left.Size()), *frame.Grid)
		}
		if err := loop.Display.Show(preview); err != nil {
			return stats, err
		}

		switch loop.Display.WaitKey(delay) {
		case KeyEscape:
			return stats, nil
		case KeyEnter, KeySpace:
			if loop.Output == nil {
				continue
			}
			if err := saveSnapshot(loop.Output.Dir, stats.Snapshots+1, left, right); err != nil {
				return stats, err
			}
			stats.Snapshots++
			loop.Logger.Infow("saved snapshot", "index", stats.Snapshots, "run", loop.Output.RunID)
		case KeyDepth:
			LogCentreDepth(loop.Logger, session, frame.Disparity)
		}
	}
	return stats, nil
}

// Preview lays out the raw pair on top and the disparity rendering below.
func Preview(left, right, disp8 *rimage.Image) *rimage.Image {
	return rimage.VStack(rimage.HStack(left, right), disp8)
}

// SnapshotNames returns the file names of snapshot index inside dir.
func SnapshotNames(dir string, index int) (string, string) {
	return filepath.Join(dir, fmt.Sprintf("videoFrame1_%d.jpg", index)),
		filepath.Join(dir, fmt.Sprintf("videoFrame2_%d.jpg", index))
}

func saveSnapshot(dir string, index int, left, right *rimage.Image) error {
	leftPath, rightPath := SnapshotNames(dir, index)
	if err := rimage.WriteImage(leftPath, left); err != nil {
		return err
	}
	return rimage.WriteImage(rightPath, right)
}

// LogCentreDepth logs the 3D point at the centre of disp, or why it is unavailable.
func LogCentreDepth(logger logging.Logger, session *stereo.Session, disp *rimage.DisparityMap) {
	centre := image.Pt(disp.Width()/2, disp.Height()/2)
	p, err := session.ReprojectPixel(centre)
	if err != nil {
		logger.Warnw("depth unavailable", "pixel", centre, "error", err)
		return
	}
	logger.Infow("depth", "pixel", centre, "x", p.X, "y", p.Y, "z", p.Z, "valid", stereo.IsValidDepth(p.Z))
}
