package report

import (
	"io"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/hyyh619/StereoVision/rimage"
)

// DefaultHistogramBins is the bin count used when none is given.
const DefaultHistogramBins = 32

// validDisparities returns the valid cells of disp in pixels.
func validDisparities(disp *rimage.DisparityMap) []float64 {
	values := make([]float64, 0, disp.ValidCount())
	for _, d := range disp.Data() {
		if d == rimage.InvalidDisparity {
			continue
		}
		values = append(values, float64(d)/rimage.DisparityScale)
	}
	return values
}

// FprintDisparityHistogram draws the distribution of valid disparities as text bars of at most
// width characters.
func FprintDisparityHistogram(w io.Writer, disp *rimage.DisparityMap, bins, width int) error {
	values := validDisparities(disp)
	if len(values) == 0 {
		return errors.New("disparity map has no valid values")
	}
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	return histogram.Fprint(w, histogram.Hist(bins, values), histogram.Linear(width))
}

// WriteDisparityHistogram plots the distribution of valid disparities in pixels. The image format
// follows the extension of path.
func WriteDisparityHistogram(path, title string, disp *rimage.DisparityMap, bins int) error {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	values := plotter.Values(validDisparities(disp))
	if len(values) == 0 {
		return errors.New("disparity map has no valid values")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "disparity (px)"
	p.Y.Label.Text = "pixels"

	hist, err := plotter.NewHist(values, bins)
	if err != nil {
		return errors.Wrap(err, "cannot build histogram")
	}
	p.Add(hist)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
