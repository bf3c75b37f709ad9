package stereo

import (
	"image"

	"github.com/pkg/errors"
)

// Block sizes used when none is given.
const (
	DefaultBMBlockSize   = 9
	DefaultSGBMBlockSize = 3
)

// Fixed matcher settings.
const (
	bmPreFilterCap      = 31
	bmTextureThreshold  = 10
	bmUniquenessRatio   = 15
	sgbmPreFilterCap    = 63
	sgbmUniquenessRatio = 10
	speckleWindowSize   = 100
	speckleRange        = 32
	disp12MaxDiff       = 1
	minDisparity        = 0
	disparityMultipleOf = 16
	sgbmP1Factor        = 8
	sgbmP2Factor        = 32
)

// Params is the matcher configuration for one run. It is immutable once built by InitAlgorithm.
type Params struct {
	Algorithm      Algorithm
	Channels       int
	NumDisparities int
	BlockSize      int
	ImgWidth       int
	ROI1, ROI2     image.Rectangle

	// numDisparitiesDerived is set when NumDisparities came from the image width.
	numDisparitiesDerived bool
}

// DefaultNumDisparities is the width based disparity range, rounded up to a multiple of 16.
func DefaultNumDisparities(imgWidth int) int {
	return ((imgWidth / 8) + 15) &^ 15
}

// InitAlgorithm validates the matcher settings and fills in defaults: a numDisparities of zero or
// less derives the range from imgWidth and a blockSize of zero or less picks 9 for BM and 3 for
// the semi-global matchers.
func InitAlgorithm(channels int, roi1, roi2 image.Rectangle, numDisparities, blockSize, imgWidth int, alg Algorithm) (Params, error) {
	if _, ok := algorithmNames[alg]; !ok {
		return Params{}, errors.Wrapf(ErrInvalidParameters, "unknown algorithm %d", alg)
	}
	if channels != 1 && channels != 3 {
		return Params{}, errors.Wrapf(ErrInvalidParameters, "channels must be 1 or 3, got %d", channels)
	}

	p := Params{
		Algorithm:      alg,
		Channels:       channels,
		NumDisparities: numDisparities,
		BlockSize:      blockSize,
		ImgWidth:       imgWidth,
		ROI1:           roi1,
		ROI2:           roi2,
	}
	if p.NumDisparities <= 0 {
		if imgWidth <= 0 {
			return Params{}, errors.Wrapf(ErrInvalidParameters, "image width %d cannot derive a disparity range", imgWidth)
		}
		p.NumDisparities = DefaultNumDisparities(imgWidth)
		p.numDisparitiesDerived = true
	}
	if p.BlockSize <= 0 {
		p.BlockSize = DefaultSGBMBlockSize
		if alg == AlgorithmBM {
			p.BlockSize = DefaultBMBlockSize
		}
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks the invariants every matcher relies on.
func (p Params) Validate() error {
	if p.NumDisparities <= 0 || p.NumDisparities%disparityMultipleOf != 0 {
		return errors.Wrapf(ErrInvalidParameters, "number of disparities must be a positive multiple of 16, got %d",
			p.NumDisparities)
	}
	if p.BlockSize <= 0 || p.BlockSize%2 == 0 {
		return errors.Wrapf(ErrInvalidParameters, "block size must be positive and odd, got %d", p.BlockSize)
	}
	if p.Algorithm == AlgorithmBM && (p.BlockSize < 5 || p.BlockSize > 255) {
		return errors.Wrapf(ErrInvalidParameters, "block matching needs a block size in [5, 255], got %d", p.BlockSize)
	}
	return nil
}

// ForWidth returns the parameters for frames of the given width. Only a derived disparity range
// changes.
func (p Params) ForWidth(imgWidth int) Params {
	if !p.numDisparitiesDerived || imgWidth <= 0 || imgWidth == p.ImgWidth {
		return p
	}
	p.ImgWidth = imgWidth
	p.NumDisparities = DefaultNumDisparities(imgWidth)
	return p
}

// BlockMatchingConfig is the full BM setting derived from Params.
type BlockMatchingConfig struct {
	PreFilterCap      int
	BlockSize         int
	MinDisparity      int
	NumDisparities    int
	TextureThreshold  int
	UniquenessRatio   int
	SpeckleWindowSize int
	SpeckleRange      int
	Disp12MaxDiff     int
	ROI1, ROI2        image.Rectangle
}

// BlockMatchingConfig returns the BM settings for p.
func (p Params) BlockMatchingConfig() BlockMatchingConfig {
	return BlockMatchingConfig{
		PreFilterCap:      bmPreFilterCap,
		BlockSize:         p.BlockSize,
		MinDisparity:      minDisparity,
		NumDisparities:    p.NumDisparities,
		TextureThreshold:  bmTextureThreshold,
		UniquenessRatio:   bmUniquenessRatio,
		SpeckleWindowSize: speckleWindowSize,
		SpeckleRange:      speckleRange,
		Disp12MaxDiff:     disp12MaxDiff,
		ROI1:              p.ROI1,
		ROI2:              p.ROI2,
	}
}

// SGBMConfig is the full semi-global setting derived from Params.
type SGBMConfig struct {
	PreFilterCap      int
	BlockSize         int
	P1, P2            int
	MinDisparity      int
	NumDisparities    int
	UniquenessRatio   int
	SpeckleWindowSize int
	SpeckleRange      int
	Disp12MaxDiff     int
	// FullDP aggregates along eight paths instead of five.
	FullDP bool
}

// SGBMConfig returns the semi-global settings for p. The smoothness penalties grow with the
// channel count and the block area, and P2 is always four times P1.
func (p Params) SGBMConfig() SGBMConfig {
	area := p.Channels * p.BlockSize * p.BlockSize
	return SGBMConfig{
		PreFilterCap:      sgbmPreFilterCap,
		BlockSize:         p.BlockSize,
		P1:                sgbmP1Factor * area,
		P2:                sgbmP2Factor * area,
		MinDisparity:      minDisparity,
		NumDisparities:    p.NumDisparities,
		UniquenessRatio:   sgbmUniquenessRatio,
		SpeckleWindowSize: speckleWindowSize,
		SpeckleRange:      speckleRange,
		Disp12MaxDiff:     disp12MaxDiff,
		FullDP:            p.Algorithm == AlgorithmHH,
	}
}
