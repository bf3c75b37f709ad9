package stereo

import (
	"github.com/pkg/errors"

	"github.com/hyyh619/StereoVision/rimage/transform"
)

var (
	// ErrConfig reports unusable calibration or preparation settings.
	ErrConfig = transform.ErrConfig
	// ErrInvalidParameters reports matcher parameters or image pairs that cannot be matched.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrUnsupportedAlgorithm is returned when a selectable algorithm has no matcher.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrEmptyImage is returned for missing or zero sized frames.
	ErrEmptyImage = errors.New("empty image")
)
