package stereo

import (
	"image"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/rimage/transform"
)

// Cull is the border cut from prepared images: X pixels on the left and right, Y pixels on the
// top and bottom.
type Cull struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// IsZero reports whether nothing is cut.
func (c Cull) IsZero() bool {
	return c.X == 0 && c.Y == 0
}

// Rect is the part of a frame of size that survives the cut.
func (c Cull) Rect(size image.Point) image.Rectangle {
	return image.Rect(c.X, c.Y, size.X-c.X, size.Y-c.Y)
}

// PrepareImages resizes both views by scale, rectifies them with calib when it is not nil and
// cuts the cull border. The inputs are not modified. A nil calib means the pair is already
// rectified.
func PrepareImages(left, right *rimage.Image, scale float64, calib *transform.StereoCalibration, cull Cull) (*rimage.Image, *rimage.Image, error) {
	if err := checkPair(left, right); err != nil {
		return nil, nil, err
	}
	if scale <= 0 {
		return nil, nil, errors.Wrapf(ErrInvalidParameters, "invalid scale %v", scale)
	}
	if cull.X < 0 || cull.Y < 0 {
		return nil, nil, errors.Wrapf(ErrConfig, "negative cull border %+v", cull)
	}

	var leftTable, rightTable *transform.RemapTable
	if calib != nil {
		leftTable, rightTable = calib.Left, calib.Right
	}

	var outLeft, outRight *rimage.Image
	var group errgroup.Group
	group.Go(func() error {
		var err error
		outLeft, err = prepareView(left, scale, leftTable, cull)
		return errors.Wrap(err, "left view")
	})
	group.Go(func() error {
		var err error
		outRight, err = prepareView(right, scale, rightTable, cull)
		return errors.Wrap(err, "right view")
	})
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return outLeft, outRight, nil
}

func prepareView(img *rimage.Image, scale float64, table *transform.RemapTable, cull Cull) (*rimage.Image, error) {
	out := img
	if scale != 1 {
		resized, err := rimage.Resize(out, scale)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidParameters, err.Error())
		}
		out = resized
	}
	if table != nil {
		rectified, err := table.Apply(out)
		if err != nil {
			return nil, err
		}
		out = rectified
	}
	if !cull.IsZero() {
		rect := cull.Rect(out.Size())
		if rect.Empty() || !rect.In(out.Bounds()) {
			return nil, errors.Wrapf(ErrConfig, "cull border %+v does not fit a %v frame", cull, out.Size())
		}
		cropped, err := rimage.Crop(out, rect)
		if err != nil {
			return nil, errors.Wrap(ErrConfig, err.Error())
		}
		out = cropped
	}
	if out == img {
		out = img.Clone()
	}
	return out, nil
}
