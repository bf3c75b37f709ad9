package pointcloud

import (
	"image/color"
	"math"

	"github.com/pkg/errors"

	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/stereo"
)

// MaxMagnitude bounds the depth of points kept by FromDisparity.
const MaxMagnitude = 1e4

// FromDisparity reprojects every matched pixel of disp with q. Points whose depth is not finite,
// equals MaxMagnitude or lies beyond it in either direction are dropped. When colors is given it
// must have the size of disp and supplies the colour of each point.
func FromDisparity(disp *rimage.DisparityMap, q stereo.Reprojection, colors *rimage.Image) (PointCloud, error) {
	if !disp.HasData() {
		return nil, errors.Wrap(stereo.ErrEmptyImage, "disparity map is empty")
	}
	if colors != nil && colors.Size() != disp.Bounds().Size() {
		return nil, errors.Wrapf(stereo.ErrInvalidParameters, "colour image is %v but disparity map is %v",
			colors.Size(), disp.Bounds().Size())
	}

	cloud := NewWithPrealloc(disp.ValidCount())
	for y := 0; y < disp.Height(); y++ {
		for x, d := range disp.Row(y) {
			if d == rimage.InvalidDisparity {
				continue
			}
			p := q.Point(x, y, d)
			if !keepDepth(p.Z) {
				continue
			}
			data := NewBasicData()
			if colors != nil {
				data = NewColoredData(pixelColor(colors, x, y))
			}
			if err := cloud.Set(p, data); err != nil {
				return nil, err
			}
		}
	}
	return cloud, nil
}

func keepDepth(z float64) bool {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return false
	}
	return math.Abs(z-MaxMagnitude) >= 1.1920929e-07 && math.Abs(z) <= MaxMagnitude
}

func pixelColor(img *rimage.Image, x, y int) color.NRGBA {
	if img.Channels() == 1 {
		g := img.GetXY(x, y, 0)
		return color.NRGBA{R: g, G: g, B: g, A: 255}
	}
	return color.NRGBA{R: img.GetXY(x, y, 0), G: img.GetXY(x, y, 1), B: img.GetXY(x, y, 2), A: 255}
}
