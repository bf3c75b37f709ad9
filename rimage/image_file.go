package rimage

import (
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	// Register decoders beyond the std set so input pairs can come in any of these formats.
	_ "github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	_ "github.com/xfmoulet/qoi"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is used for every JPEG written by WriteImage.
const JPEGQuality = 95

// ReadImage decodes the file at path. When grey is set the result is single channel, otherwise
// three channel RGB.
func ReadImage(path string, grey bool) (*Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image %q", path)
	}
	out := NewImageFromStdImage(img, grey)
	if out.Empty() {
		return nil, errors.Errorf("image %q has no pixels", path)
	}
	return out, nil
}

// WriteImage encodes img with the format implied by the file extension.
func WriteImage(path string, img *Image) error {
	if img.Empty() {
		return errors.Errorf("refusing to write empty image to %q", path)
	}
	if _, err := imaging.FormatFromFilename(path); err != nil {
		return errors.Wrapf(err, "unsupported image extension %q", strings.ToLower(filepath.Ext(path)))
	}
	if err := imaging.Save(img.ToStdImage(), path, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return errors.Wrapf(err, "cannot write image %q", path)
	}
	return nil
}
