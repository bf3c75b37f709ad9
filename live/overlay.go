package live

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/stereo"
)

// AnnotateGrid draws the depth grid cells of region over the disparity panel of a preview. The
// panel starts at offset inside preview. The nearest cell is outlined in red, empty cells show
// no label.
func AnnotateGrid(preview *rimage.Image, offset image.Point, region image.Rectangle, grid stereo.RegionDepthGrid) *rimage.Image {
	dc := gg.NewContextForImage(preview.ToStdImage())
	cellW := float64(region.Dx() / stereo.RegionGridSize)
	cellH := float64(region.Dy() / stereo.RegionGridSize)
	nearRow, nearCol, nearest := grid.Nearest()

	dc.SetLineWidth(1)
	for row := range grid {
		for col, depth := range grid[row] {
			x := float64(offset.X+region.Min.X) + float64(col)*cellW
			y := float64(offset.Y+region.Min.Y) + float64(row)*cellH
			if row == nearRow && col == nearCol && nearest < stereo.MaxDepth {
				dc.SetRGB(1, 0, 0)
			} else {
				dc.SetRGB(0, 1, 0)
			}
			dc.DrawRectangle(x, y, cellW, cellH)
			dc.Stroke()
			if depth < stereo.MaxDepth {
				dc.DrawStringAnchored(fmt.Sprintf("%.0f", depth), x+cellW/2, y+cellH/2, 0.5, 0.5)
			}
		}
	}
	return rimage.NewImageFromStdImage(dc.Image(), false)
}
