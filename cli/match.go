package cli

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/hyyh619/StereoVision/camera"
	"github.com/hyyh619/StereoVision/config"
	"github.com/hyyh619/StereoVision/live"
	"github.com/hyyh619/StereoVision/logging"
	"github.com/hyyh619/StereoVision/pointcloud"
	"github.com/hyyh619/StereoVision/report"
	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/stereo"
)

func matchFlags() []cli.Flag {
	return append(pipelineFlags(),
		&cli.StringFlag{
			Name:    flagDisparityOut,
			Aliases: []string{"o"},
			Usage:   "dump raw disparities to <path>/`NAME`_<algorithm>_<w>x<h>_<input>.dat",
		},
		&cli.StringFlag{
			Name:    flagPointCloud,
			Aliases: []string{"p"},
			Usage:   "dump the point cloud to <path>/`NAME`_<algorithm>_<w>x<h>_<input>.dat (needs -i and -e)",
		},
		&cli.BoolFlag{
			Name:  flagPCD,
			Usage: "also write the point cloud as binary PCD (needs -i and -e)",
		},
		&cli.StringFlag{
			Name:    flagDepthGrid,
			Aliases: []string{"v"},
			Usage:   "write the region depth grid of every frame to <path>/`FILE`",
		},
		&cli.StringFlag{
			Name:  flagLeft,
			Usage: "process every file starting with left `PREFIX`, paired by order with --right",
		},
		&cli.StringFlag{
			Name:  flagRight,
			Usage: "right file `PREFIX`",
		},
		&cli.BoolFlag{
			Name:  flagNoPictures,
			Usage: "do not save the disparity and colour pictures",
		},
		&cli.BoolFlag{
			Name:  flagHistogram,
			Usage: "save a disparity histogram per frame",
		},
		&cli.BoolFlag{
			Name:  flagMipmaps,
			Usage: "save half scale pyramids of the inputs",
		},
	)
}

// NewMatchApp returns the stereo-match command with Writer set to out and ErrWriter set to
// errOut.
func NewMatchApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "stereo-match",
		Usage:           "compute disparity and depth for stereo image pairs",
		ArgsUsage:       "[<left image> <right image>]",
		HideHelpCommand: true,
		Flags:           matchFlags(),
		Action:          MatchAction,
		Writer:          out,
		ErrWriter:       errOut,
	}
}

// MatchAction runs the batch matcher.
func MatchAction(c *cli.Context) error {
	cfg, err := loadConfig(c, func(c *cli.Context, overrides *config.Config) {
		overrides.Output.Disparity = c.String(flagDisparityOut)
		overrides.Output.PointCloud = c.String(flagPointCloud)
		overrides.Output.PCD = c.Bool(flagPCD)
		overrides.Output.DepthGrid = c.String(flagDepthGrid)
		overrides.Output.Histogram = c.Bool(flagHistogram)
		overrides.Output.Mipmaps = c.Bool(flagMipmaps)
	})
	if err != nil {
		return err
	}
	if c.Bool(flagNoPictures) {
		cfg.Output.Pictures = false
	}

	pairs, err := inputPairs(c)
	if err != nil {
		return err
	}

	logger := newLogger(c.App.Name, cfg, "")
	//nolint:errcheck
	defer logger.Sync()

	m, err := newMatchRun(logger, cfg)
	if err != nil {
		return err
	}
	runErr := m.run(pairs)
	if err := multierr.Combine(runErr, m.close()); err != nil {
		return err
	}

	if summary, err := report.TimingSummary(m.timeLog.Durations()); err == nil {
		fmt.Fprintln(c.App.Writer, summary.Table(fmt.Sprintf("%s %s", c.App.Name, m.out.Algorithm)))
	}
	return nil
}

func inputPairs(c *cli.Context) ([]report.Pair, error) {
	if c.NArg() >= 2 {
		return []report.Pair{{Left: c.Args().Get(0), Right: c.Args().Get(1)}}, nil
	}
	if c.String(flagLeft) != "" && c.String(flagRight) != "" {
		return report.PairFiles(c.String(flagLeft), c.String(flagRight))
	}
	return nil, errors.New("both left and right images must be specified")
}

// matchRun holds the per run state of stereo-match.
type matchRun struct {
	logger logging.Logger
	cfg    *config.Config
	out    *report.Output

	// Rectification depends on the frame size and the matcher on the channel count.
	sessions  map[sessionKey]*stereo.Session
	timeLog   *report.TimeCostLog
	depthFile *os.File
	window    *camera.Window
}

func newMatchRun(logger logging.Logger, cfg *config.Config) (*matchRun, error) {
	m := &matchRun{
		logger:   logger,
		cfg:      cfg,
		out:      report.NewOutput(cfg.Output.Dir, strings.ToLower(cfg.AlgorithmValue().String())),
		sessions: map[sessionKey]*stereo.Session{},
	}
	fail := func(err error) (*matchRun, error) {
		return nil, multierr.Combine(err, m.close())
	}
	if err := os.MkdirAll(m.out.Dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "cannot create output directory %q", m.out.Dir)
	}
	var err error
	if m.timeLog, err = report.OpenTimeCostLog(m.out); err != nil {
		return nil, err
	}
	if name := cfg.Output.DepthGrid; name != "" {
		path := filepath.Join(m.out.Dir, name)
		//nolint:gosec
		if m.depthFile, err = os.Create(path); err != nil {
			return fail(errors.Wrapf(err, "cannot open depth file %q", path))
		}
	}
	if !cfg.NoDisplay {
		if m.window, err = camera.NewWindow("disparity"); err != nil {
			return fail(err)
		}
	}
	logger.Infow("starting", "run", m.out.RunID, "algorithm", m.out.Algorithm, "output", m.out.Dir)
	return m, nil
}

func (m *matchRun) close() error {
	var err error
	if m.timeLog != nil {
		err = multierr.Combine(err, m.timeLog.Close())
	}
	if m.depthFile != nil {
		err = multierr.Combine(err, m.depthFile.Close())
	}
	if m.window != nil {
		err = multierr.Combine(err, m.window.Close())
	}
	return err
}

func (m *matchRun) run(pairs []report.Pair) error {
	for i, pair := range pairs {
		if err := m.process(i, pair); err != nil {
			return errors.Wrapf(err, "pair %q %q", pair.Left, pair.Right)
		}
	}
	return nil
}

type sessionKey struct {
	size     image.Point
	channels int
}

func (m *matchRun) session(first *rimage.Image) (*stereo.Session, image.Point, error) {
	key := sessionKey{size: scaledSize(m.cfg, first), channels: first.Channels()}
	if session, ok := m.sessions[key]; ok {
		return session, key.size, nil
	}
	session, size, err := newSession(m.logger, m.cfg, first)
	if err != nil {
		return nil, size, err
	}
	m.sessions[key] = session
	return session, size, nil
}

func (m *matchRun) process(index int, pair report.Pair) error {
	grey := m.cfg.GreyInput()
	left, err := rimage.ReadImage(pair.Left, grey)
	if err != nil {
		return errors.Wrap(err, "could not load the first input image file")
	}
	right, err := rimage.ReadImage(pair.Right, grey)
	if err != nil {
		return errors.Wrap(err, "could not load the second input image file")
	}

	start := time.Now()
	session, size, err := m.session(left)
	if err != nil {
		return err
	}
	frame, err := session.Process(left, right)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	postfix := pair.Postfix()
	// The first frame pays for one-off setup and is left out of the average.
	if err := m.timeLog.Record(size, postfix, elapsed, index != 0); err != nil {
		return err
	}
	m.logger.Infow("matched", "pair", postfix, "elapsed", elapsed, "valid", frame.Disparity.ValidCount())

	if frame.Grid != nil {
		m.logger.Debug("\n" + report.DepthGridTable(postfix, *frame.Grid))
		if m.depthFile != nil {
			if err := report.WriteDepthGrid(m.depthFile, m.out.FileName("disp", size, postfix, "jpg"), *frame.Grid); err != nil {
				return err
			}
		}
	}
	if name := m.cfg.Output.Disparity; name != "" {
		if err := report.WriteDisparityData(m.out.FileName(name, size, postfix, "dat"), frame.Disparity); err != nil {
			return err
		}
	}
	if m.window != nil {
		if err := m.show(session, left, right, frame); err != nil {
			return err
		}
	}
	if err := m.writeCloud(session, size, postfix, frame); err != nil {
		return err
	}
	return m.writePictures(size, pair, left, right, frame)
}

// show previews the frame until a key is pressed. d logs the depth at the centre first.
func (m *matchRun) show(session *stereo.Session, left, right *rimage.Image, frame *stereo.Frame) error {
	if err := m.window.Show(live.Preview(left, right, frame.Normalized)); err != nil {
		return err
	}
	m.logger.Info("press any key to continue...")
	for m.window.WaitKey(0) == live.KeyDepth {
		live.LogCentreDepth(m.logger, session, frame.Disparity)
	}
	return nil
}

func (m *matchRun) writeCloud(session *stereo.Session, size image.Point, postfix string, frame *stereo.Frame) error {
	name := m.cfg.Output.PointCloud
	if name == "" && !m.cfg.Output.PCD {
		return nil
	}
	q, ok := session.Reprojection()
	if !ok {
		return errors.Wrap(stereo.ErrConfig, "extrinsic and intrinsic parameters must be specified to compute the point cloud")
	}
	m.logger.Debug("storing the point cloud...")
	cloud, err := pointcloud.FromDisparity(frame.Disparity, q, frame.Left)
	if err != nil {
		return err
	}
	if name != "" {
		if err := report.WriteXYZData(m.out.FileName(name, size, postfix, "dat"), cloud); err != nil {
			return err
		}
	}
	if !m.cfg.Output.PCD {
		return nil
	}
	return report.WritePCD(m.out.FileName("cloud", size, postfix, "pcd"), cloud)
}

func (m *matchRun) writePictures(size image.Point, pair report.Pair, left, right *rimage.Image, frame *stereo.Frame) error {
	postfix := pair.Postfix()
	if m.cfg.Output.Pictures {
		if err := report.SavePictures(m.out, size, postfix, frame.Normalized); err != nil {
			return err
		}
	}
	if m.cfg.Output.Histogram && frame.Disparity.ValidCount() > 0 {
		path := m.out.FileName("hist", size, postfix, "png")
		if err := report.WriteDisparityHistogram(path, postfix, frame.Disparity, 0); err != nil {
			return err
		}
		var text bytes.Buffer
		if err := report.FprintDisparityHistogram(&text, frame.Disparity, 0, 40); err == nil {
			m.logger.Debug("\n" + text.String())
		}
	}
	if !m.cfg.Output.Mipmaps {
		return nil
	}
	for _, view := range []struct {
		img  *rimage.Image
		name string
	}{
		{left, postfix},
		{right, filepath.Base(pair.Right)},
	} {
		scaled, err := rimage.Resize(view.img, scaleOf(m.cfg))
		if err != nil {
			return err
		}
		levels := append([]*rimage.Image{scaled}, rimage.Mipmaps(scaled, rimage.DefaultMipmapMinSize)...)
		for k, level := range levels {
			path := filepath.Join(m.out.Dir, fmt.Sprintf("%s_%d.jpg", view.name, 21+k))
			if err := rimage.WriteImage(path, level); err != nil {
				return err
			}
		}
	}
	return nil
}
