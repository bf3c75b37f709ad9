package report

import (
	"image"

	"github.com/pkg/errors"

	"github.com/hyyh619/StereoVision/rimage"
)

// SavePictures writes the 8-bit disparity as "disp" and its pseudo-colour rendering as "color",
// both as JPEG named after the frame size and postfix.
func SavePictures(out *Output, size image.Point, postfix string, disp8 *rimage.Image) error {
	if disp8.Empty() {
		return errors.New("no disparity image to save")
	}
	if err := rimage.WriteImage(out.FileName("disp", size, postfix, "jpg"), disp8); err != nil {
		return err
	}
	return rimage.WriteImage(out.FileName("color", size, postfix, "jpg"), rimage.PseudoColor(disp8))
}
