// Package config defines the configuration of a stereo matching run and reads it from JSON or
// YAML files.
package config

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/hyyh619/StereoVision/logging"
	"github.com/hyyh619/StereoVision/rimage/transform"
	"github.com/hyyh619/StereoVision/stereo"
)

// A Config describes one stereo pipeline and what it writes.
type Config struct {
	Algorithm      string      `json:"algorithm"`
	NumDisparities int         `json:"numDisparities,omitempty"`
	BlockSize      int         `json:"blockSize,omitempty"`
	Scale          float64     `json:"scale,omitempty"`
	Calibration    Calibration `json:"calibration"`
	Cull           stereo.Cull `json:"cull"`
	// FilterDepth drops matches beyond stereo.DefaultFilterDepth.
	FilterDepth bool    `json:"filterDepth,omitempty"`
	Region      *Region `json:"region,omitempty"`
	Output      Output  `json:"output"`
	NoDisplay   bool    `json:"noDisplay,omitempty"`
	LogLevel    string  `json:"logLevel,omitempty"`
}

// Calibration names the OpenCV stores of a camera pair and the frame size they were made at.
type Calibration struct {
	Intrinsics string `json:"intrinsics,omitempty"`
	Extrinsics string `json:"extrinsics,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// Region is a rectangle in prepared frame coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Output selects the artefacts written per frame. The file names are used as the name part of
// the generated output names.
type Output struct {
	Dir        string `json:"dir,omitempty"`
	Disparity  string `json:"disparity,omitempty"`
	PointCloud string `json:"pointCloud,omitempty"`
	PCD        bool   `json:"pcd,omitempty"`
	DepthGrid  string `json:"depthGrid,omitempty"`
	Pictures   bool   `json:"pictures,omitempty"`
	Histogram  bool   `json:"histogram,omitempty"`
	Mipmaps    bool   `json:"mipmaps,omitempty"`
}

// Default returns the configuration used when nothing is given.
func Default() *Config {
	return &Config{
		Algorithm: "sgbm",
		Scale:     1,
		Output:    Output{Dir: ".", Pictures: true},
	}
}

// NewFieldError reports an invalid field of the config at path.
func NewFieldError(path, field, msg string) error {
	return utils.NewConfigValidationError(fmt.Sprintf("%s.%s", path, field), errors.New(msg))
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.Algorithm == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "algorithm")
	}
	alg, err := stereo.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return NewFieldError(path, "algorithm", err.Error())
	}
	if alg == stereo.AlgorithmVAR {
		return NewFieldError(path, "algorithm", stereo.ErrUnsupportedAlgorithm.Error())
	}
	if c.NumDisparities < 0 || c.NumDisparities%16 != 0 {
		return NewFieldError(path, "numDisparities", "must be a positive integer divisible by 16")
	}
	if c.BlockSize < 0 || (c.BlockSize > 0 && c.BlockSize%2 != 1) {
		return NewFieldError(path, "blockSize", "must be a positive odd number")
	}
	if c.Scale < 0 {
		return NewFieldError(path, "scale", "must be a positive number")
	}
	if err := c.Calibration.Validate(fmt.Sprintf("%s.%s", path, "calibration")); err != nil {
		return err
	}
	if c.Cull.X < 0 || c.Cull.Y < 0 {
		return NewFieldError(path, "cull", "border must not be negative")
	}
	if c.Region != nil {
		if err := c.Region.Validate(fmt.Sprintf("%s.%s", path, "region")); err != nil {
			return err
		}
	}
	if (c.Output.PointCloud != "" || c.Output.PCD) && !c.Calibration.Enabled() {
		return NewFieldError(path, "output.pointCloud", "intrinsic and extrinsic parameters are required to compute the point cloud")
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return NewFieldError(path, "logLevel", err.Error())
		}
	}
	return nil
}

// Validate ensures both stores are named or neither is.
func (c *Calibration) Validate(path string) error {
	if (c.Intrinsics == "") != (c.Extrinsics == "") {
		return NewFieldError(path, "intrinsics",
			"either both intrinsic and extrinsic parameters must be specified or none of them")
	}
	if c.Width < 0 || c.Height < 0 || (c.Width == 0) != (c.Height == 0) {
		return NewFieldError(path, "width", "calibration size must be positive in both dimensions")
	}
	return nil
}

// Enabled is true when the pair must be rectified.
func (c *Calibration) Enabled() bool {
	return c.Intrinsics != "" && c.Extrinsics != ""
}

// Size is the calibration frame size, transform.DefaultCalibrationSize when unset.
func (c *Calibration) Size() image.Point {
	if c.Width == 0 || c.Height == 0 {
		return transform.DefaultCalibrationSize
	}
	return image.Pt(c.Width, c.Height)
}

// Load rectifies the configured pair for frames of targetSize after scaling. It returns nil
// without an error when no calibration is configured.
func (c *Calibration) Load(scale float64, targetSize image.Point) (*transform.StereoCalibration, error) {
	if !c.Enabled() {
		return nil, nil
	}
	return transform.LoadCalibration(c.Intrinsics, c.Extrinsics, scale, targetSize, c.Size())
}

// Validate ensures the region has an area.
func (r *Region) Validate(path string) error {
	if r.Width <= 0 || r.Height <= 0 {
		return NewFieldError(path, "width", "region must have a positive size")
	}
	return nil
}

// Rect converts to image coordinates.
func (r *Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// AlgorithmValue returns the parsed algorithm. The config must be valid.
func (c *Config) AlgorithmValue() stereo.Algorithm {
	//nolint:errcheck
	alg, _ := stereo.ParseAlgorithm(c.Algorithm)
	return alg
}

// Params initialises matcher parameters for frames with the given channel count and width.
func (c *Config) Params(channels, width int, calib *transform.StereoCalibration) (stereo.Params, error) {
	var roi1, roi2 image.Rectangle
	if calib != nil {
		roi1, roi2 = calib.ROI1, calib.ROI2
	}
	return stereo.InitAlgorithm(channels, roi1, roi2, c.NumDisparities, c.BlockSize, width, c.AlgorithmValue())
}

// SessionOptions converts the preparation settings.
func (c *Config) SessionOptions() stereo.SessionOptions {
	opts := stereo.SessionOptions{Scale: c.Scale, Cull: c.Cull}
	if c.FilterDepth {
		opts.FilterDepth = stereo.DefaultFilterDepth
	}
	if c.Region != nil {
		opts.Region = c.Region.Rect()
	}
	return opts
}

// GreyInput is true when frames must be read as single channel images.
func (c *Config) GreyInput() bool {
	return c.AlgorithmValue() == stereo.AlgorithmBM
}

// Merge returns a copy of c with every field that is set in with taken from with. Boolean
// toggles can only be switched on.
func (c *Config) Merge(with *Config) *Config {
	merged := *c
	if c.Region != nil {
		region := *c.Region
		merged.Region = &region
	}
	if with == nil {
		return &merged
	}
	if with.Algorithm != "" {
		merged.Algorithm = with.Algorithm
	}
	if with.NumDisparities != 0 {
		merged.NumDisparities = with.NumDisparities
	}
	if with.BlockSize != 0 {
		merged.BlockSize = with.BlockSize
	}
	if with.Scale != 0 {
		merged.Scale = with.Scale
	}
	mergeString(&merged.Calibration.Intrinsics, with.Calibration.Intrinsics)
	mergeString(&merged.Calibration.Extrinsics, with.Calibration.Extrinsics)
	if with.Calibration.Width != 0 || with.Calibration.Height != 0 {
		merged.Calibration.Width, merged.Calibration.Height = with.Calibration.Width, with.Calibration.Height
	}
	if !with.Cull.IsZero() {
		merged.Cull = with.Cull
	}
	merged.FilterDepth = merged.FilterDepth || with.FilterDepth
	if with.Region != nil {
		region := *with.Region
		merged.Region = &region
	}
	mergeString(&merged.Output.Dir, with.Output.Dir)
	mergeString(&merged.Output.Disparity, with.Output.Disparity)
	mergeString(&merged.Output.PointCloud, with.Output.PointCloud)
	mergeString(&merged.Output.DepthGrid, with.Output.DepthGrid)
	merged.Output.PCD = merged.Output.PCD || with.Output.PCD
	merged.Output.Pictures = merged.Output.Pictures || with.Output.Pictures
	merged.Output.Histogram = merged.Output.Histogram || with.Output.Histogram
	merged.Output.Mipmaps = merged.Output.Mipmaps || with.Output.Mipmaps
	merged.NoDisplay = merged.NoDisplay || with.NoDisplay
	mergeString(&merged.LogLevel, with.LogLevel)
	return &merged
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
