package cli

import (
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/hyyh619/StereoVision/camera"
	"github.com/hyyh619/StereoVision/live"
	"github.com/hyyh619/StereoVision/report"
	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/stereo"
)

func liveFlags() []cli.Flag {
	return append(pipelineFlags(),
		&cli.IntFlag{
			Name:  flagLeftCamera,
			Value: 0,
			Usage: "video device of the left camera",
		},
		&cli.IntFlag{
			Name:  flagRightCamera,
			Value: 1,
			Usage: "video device of the right camera",
		},
		&cli.IntFlag{
			Name:  flagWidth,
			Value: 320,
			Usage: "requested camera frame width",
		},
		&cli.IntFlag{
			Name:  flagHeight,
			Value: 240,
			Usage: "requested camera frame height",
		},
		&cli.StringFlag{
			Name:  flagLogFile,
			Usage: "also write logs to `FILE`, rotated by size",
		},
		&cli.IntFlag{
			Name:  flagMaxFrames,
			Usage: "stop after this many frames",
		},
	)
}

// NewLiveApp returns the stereo-live command with Writer set to out and ErrWriter set to errOut.
func NewLiveApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "stereo-live",
		Usage:           "run stereo matching on a live camera pair (ESC quits, enter saves, d prints depth)",
		HideHelpCommand: true,
		Flags:           liveFlags(),
		Action:          LiveAction,
		Writer:          out,
		ErrWriter:       errOut,
	}
}

// LiveAction opens both cameras and runs the preview loop.
func LiveAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c, nil)
	if err != nil {
		return err
	}
	if cfg.NoDisplay {
		return errors.New("stereo-live needs a display")
	}
	logger := newLogger(c.App.Name, cfg, c.String(flagLogFile))
	//nolint:errcheck
	defer logger.Sync()

	out := report.NewOutput(cfg.Output.Dir, strings.ToLower(cfg.AlgorithmValue().String()))
	if err := os.MkdirAll(out.Dir, 0o750); err != nil {
		return errors.Wrapf(err, "cannot create output directory %q", out.Dir)
	}

	grey := cfg.GreyInput()
	size := image.Pt(c.Int(flagWidth), c.Int(flagHeight))
	left, err := camera.OpenWebcam(c.Int(flagLeftCamera), size, grey)
	if err != nil {
		return err
	}
	right, err := camera.OpenWebcam(c.Int(flagRightCamera), size, grey)
	if err != nil {
		return multierr.Combine(err, left.Close())
	}
	source := camera.NewPairSource(left, right)
	defer func() {
		err = multierr.Combine(err, source.Close())
	}()

	window, err := camera.NewWindow(c.App.Name)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, window.Close())
	}()

	logger.Infow("starting", "run", out.RunID, "algorithm", out.Algorithm, "size", size)
	stats, err := live.Run(c.Context, live.Loop{
		Logger:  logger,
		Source:  source,
		Display: window,
		NewSession: func(first *rimage.Image) (*stereo.Session, error) {
			session, _, err := newSession(logger, cfg, first)
			return session, err
		},
		Output:    out,
		MaxFrames: c.Int(flagMaxFrames),
	})
	if summary, sumErr := report.TimingSummary(stats.Durations); sumErr == nil {
		fmt.Fprintln(c.App.Writer, summary.Table(c.App.Name))
	}
	return err
}
