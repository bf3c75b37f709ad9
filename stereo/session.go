package stereo

import (
	"image"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/hyyh619/StereoVision/logging"
	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/rimage/transform"
)

// SessionOptions control how a Session prepares frames.
type SessionOptions struct {
	// Scale resizes raw frames before rectification. Zero means 1.
	Scale float64
	Cull  Cull
	// FilterDepth drops matches further away than this depth. Zero disables the filter.
	FilterDepth float64
	// Region overrides the centred region scanned for the depth grid.
	Region image.Rectangle
}

// Frame is the result of processing one raw image pair.
type Frame struct {
	Left, Right *rimage.Image
	Params      Params
	Disparity   *rimage.DisparityMap
	// Normalized is the 8-bit rendering of Disparity.
	Normalized *rimage.Image
	// Grid is only set when the session has a reprojection matrix.
	Grid    *RegionDepthGrid
	Elapsed time.Duration
}

// A Session runs the pipeline for one camera pair. The calibration and parameters are fixed when
// the session is created; the last disparity map is kept for point queries.
type Session struct {
	logger  logging.Logger
	calib   *transform.StereoCalibration
	params  Params
	options SessionOptions
	q       *Reprojection

	mu       sync.RWMutex
	lastDisp *rimage.DisparityMap
}

// NewSession validates params and prepares the reprojection matrix of calib. calib may be nil
// for pairs that are already rectified, in which case depth queries are unavailable.
func NewSession(logger logging.Logger, calib *transform.StereoCalibration, params Params, options SessionOptions) (*Session, error) {
	if _, err := NewMatcher(params); err != nil {
		return nil, err
	}
	if options.Scale == 0 {
		options.Scale = 1
	}
	if options.Scale < 0 {
		return nil, errors.Wrapf(ErrInvalidParameters, "invalid scale %v", options.Scale)
	}
	if options.FilterDepth < 0 {
		return nil, errors.Wrapf(ErrInvalidParameters, "invalid filter depth %v", options.FilterDepth)
	}
	s := &Session{
		logger:  logger,
		calib:   calib,
		params:  params,
		options: options,
	}
	if calib != nil {
		q, err := NewReprojection(calib.Q)
		if err != nil {
			return nil, err
		}
		s.q = &q
	}
	return s, nil
}

// Params returns the parameters the session was created with.
func (s *Session) Params() Params {
	return s.params
}

// Calibration returns the calibration in use, or nil.
func (s *Session) Calibration() *transform.StereoCalibration {
	return s.calib
}

// Reprojection returns the Q matrix of the calibration.
func (s *Session) Reprojection() (Reprojection, bool) {
	if s.q == nil {
		return Reprojection{}, false
	}
	return *s.q, true
}

// Compute prepares a raw pair and matches it. The result is also remembered for ReprojectPixel.
func (s *Session) Compute(left, right *rimage.Image) (*rimage.DisparityMap, error) {
	_, _, disp, _, err := s.compute(left, right)
	return disp, err
}

func (s *Session) compute(left, right *rimage.Image) (*rimage.Image, *rimage.Image, *rimage.DisparityMap, Params, error) {
	prepLeft, prepRight, err := PrepareImages(left, right, s.options.Scale, s.calib, s.options.Cull)
	if err != nil {
		return nil, nil, nil, Params{}, err
	}
	params := s.params.ForWidth(prepLeft.Width())
	params.ROI1 = cullROI(params.ROI1, s.options.Cull)
	params.ROI2 = cullROI(params.ROI2, s.options.Cull)
	disp, err := ComputeDisparity(prepLeft, prepRight, params)
	if err != nil {
		return nil, nil, nil, Params{}, err
	}
	if s.q != nil && s.options.FilterDepth > 0 {
		disp = FilterDisparity(disp, *s.q, s.options.FilterDepth)
	}

	s.mu.Lock()
	s.lastDisp = disp
	s.mu.Unlock()
	return prepLeft, prepRight, disp, params, nil
}

// cullROI moves a rectified frame ROI into the coordinates of the culled frame.
func cullROI(roi image.Rectangle, cull Cull) image.Rectangle {
	if roi.Empty() || cull.IsZero() {
		return roi
	}
	return roi.Sub(image.Pt(cull.X, cull.Y))
}

// Process runs Compute and derives the normalized rendering and, with a calibration, the region
// depth grid.
func (s *Session) Process(left, right *rimage.Image) (*Frame, error) {
	start := time.Now()
	prepLeft, prepRight, disp, params, err := s.compute(left, right)
	if err != nil {
		return nil, err
	}
	frame := &Frame{
		Left:       prepLeft,
		Right:      prepRight,
		Params:     params,
		Disparity:  disp,
		Normalized: NormalizeDisparity(disp, params.Algorithm, params.NumDisparities),
	}
	if s.q != nil {
		grid := RegionDepthGridIn(disp, *s.q, s.Region(left.Size()))
		frame.Grid = &grid
	}
	frame.Elapsed = time.Since(start)
	s.logger.Debugw("processed frame",
		"algorithm", params.Algorithm,
		"size", disp.Bounds().Size(),
		"num_disparities", params.NumDisparities,
		"valid", disp.ValidCount(),
		"elapsed", frame.Elapsed)
	return frame, nil
}

// Region is the depth grid region, in prepared frame coordinates, for raw frames of rawSize.
func (s *Session) Region(rawSize image.Point) image.Rectangle {
	if !s.options.Region.Empty() {
		return s.options.Region
	}
	w, h := rimage.ScaledSize(rawSize.X, rawSize.Y, s.options.Scale)
	return RegionForSize(image.Pt(w, h), s.options.Cull)
}

// LastDisparity returns the most recent disparity map, or nil before the first frame.
func (s *Session) LastDisparity() *rimage.DisparityMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDisp
}

// ReprojectPixel returns the 3D point at pixel of the last disparity map.
func (s *Session) ReprojectPixel(pixel image.Point) (r3.Vector, error) {
	if s.q == nil {
		return r3.Vector{}, errors.Wrap(ErrConfig, "depth needs a calibration")
	}
	disp := s.LastDisparity()
	if disp == nil {
		return r3.Vector{}, errors.Wrap(ErrEmptyImage, "no disparity has been computed yet")
	}
	return ReprojectPixel(disp, *s.q, pixel), nil
}
