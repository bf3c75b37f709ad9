// Package cli implements the stereo-match and stereo-live commands.
package cli

import (
	"image"

	"github.com/urfave/cli/v2"

	"github.com/hyyh619/StereoVision/config"
	"github.com/hyyh619/StereoVision/logging"
	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/stereo"
)

const (
	flagConfig       = "config"
	flagDebug        = "debug"
	flagAlgorithm    = "algorithm"
	flagMaxDisparity = "max-disparity"
	flagBlockSize    = "blocksize"
	flagScale        = "scale"
	flagNoDisplay    = "no-display"
	flagIntrinsics   = "intrinsics"
	flagExtrinsics   = "extrinsics"
	flagCullX        = "cull-x"
	flagCullY        = "cull-y"
	flagFilterDepth  = "filter-depth"
	flagPath         = "path"

	// stereo-match only.
	flagDisparityOut = "disparity-out"
	flagPointCloud   = "point-cloud"
	flagPCD          = "pcd"
	flagDepthGrid    = "depth-grid"
	flagLeft         = "left"
	flagRight        = "right"
	flagNoPictures   = "no-pictures"
	flagHistogram    = "histogram"
	flagMipmaps      = "mipmaps"

	// stereo-live only.
	flagLeftCamera  = "left-camera"
	flagRightCamera = "right-camera"
	flagWidth       = "width"
	flagHeight      = "height"
	flagLogFile     = "log-file"
	flagMaxFrames   = "max-frames"
)

// pipelineFlags are shared by both commands.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load the pipeline configuration from `FILE` (JSON or YAML); flags override it",
		},
		&cli.BoolFlag{
			Name:  flagDebug,
			Usage: "enable debug logging",
		},
		&cli.StringFlag{
			Name:  flagAlgorithm,
			Usage: "stereo algorithm: bm, sgbm or hh",
		},
		&cli.IntFlag{
			Name:  flagMaxDisparity,
			Usage: "number of disparities, a positive multiple of 16 (derived from the width when unset)",
		},
		&cli.IntFlag{
			Name:  flagBlockSize,
			Usage: "matching block size, a positive odd number",
		},
		&cli.Float64Flag{
			Name:  flagScale,
			Usage: "resize factor applied to the input frames",
		},
		&cli.BoolFlag{
			Name:  flagNoDisplay,
			Usage: "do not open preview windows",
		},
		&cli.StringFlag{
			Name:    flagIntrinsics,
			Aliases: []string{"i"},
			Usage:   "intrinsic parameters `FILE` (M1, D1, M2, D2)",
		},
		&cli.StringFlag{
			Name:    flagExtrinsics,
			Aliases: []string{"e"},
			Usage:   "extrinsic parameters `FILE` (R, T)",
		},
		&cli.IntFlag{
			Name:  flagCullX,
			Usage: "pixels cut from the left and right of prepared frames",
		},
		&cli.IntFlag{
			Name:  flagCullY,
			Usage: "pixels cut from the top and bottom of prepared frames",
		},
		&cli.BoolFlag{
			Name:  flagFilterDepth,
			Usage: "drop matches further away than 5000 units",
		},
		&cli.StringFlag{
			Name:  flagPath,
			Usage: "output `DIR`",
		},
	}
}

// loadConfig reads the config file, if any, and applies every flag that was set.
func loadConfig(c *cli.Context, extra func(c *cli.Context, overrides *config.Config)) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, err
		}
	}

	overrides := &config.Config{
		Algorithm:      c.String(flagAlgorithm),
		NumDisparities: c.Int(flagMaxDisparity),
		BlockSize:      c.Int(flagBlockSize),
		Scale:          c.Float64(flagScale),
		Calibration: config.Calibration{
			Intrinsics: c.String(flagIntrinsics),
			Extrinsics: c.String(flagExtrinsics),
		},
		Cull:        stereo.Cull{X: c.Int(flagCullX), Y: c.Int(flagCullY)},
		FilterDepth: c.Bool(flagFilterDepth),
		NoDisplay:   c.Bool(flagNoDisplay),
	}
	overrides.Output.Dir = c.String(flagPath)
	if c.Bool(flagDebug) {
		overrides.LogLevel = "debug"
	}
	if extra != nil {
		extra(c, overrides)
	}

	merged := cfg.Merge(overrides)
	if err := merged.Validate(c.App.Name); err != nil {
		return nil, err
	}
	return merged, nil
}

func newLogger(name string, cfg *config.Config, logFile string) logging.Logger {
	var logger logging.Logger
	if logFile != "" {
		logger = logging.NewFileLogger(name, logFile)
	} else {
		logger = logging.NewLogger(name)
	}
	if cfg.LogLevel != "" {
		if level, err := logging.LevelFromString(cfg.LogLevel); err == nil {
			logger.SetLevel(level)
		}
	}
	return logger
}

func scaleOf(cfg *config.Config) float64 {
	if cfg.Scale == 0 {
		return 1
	}
	return cfg.Scale
}

// scaledSize is the size of img after the configured resize.
func scaledSize(cfg *config.Config, img *rimage.Image) image.Point {
	w, h := rimage.ScaledSize(img.Width(), img.Height(), scaleOf(cfg))
	return image.Pt(w, h)
}

// newSession builds a session for frames shaped like first and returns the frame size after
// scaling.
func newSession(logger logging.Logger, cfg *config.Config, first *rimage.Image) (*stereo.Session, image.Point, error) {
	size := scaledSize(cfg, first)
	calib, err := cfg.Calibration.Load(scaleOf(cfg), size)
	if err != nil {
		return nil, size, err
	}
	params, err := cfg.Params(first.Channels(), size.X, calib)
	if err != nil {
		return nil, size, err
	}
	session, err := stereo.NewSession(logger, calib, params, cfg.SessionOptions())
	return session, size, err
}
