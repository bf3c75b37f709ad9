package stereo

import (
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/hyyh619/StereoVision/rimage"
)

// RegionGridSize is the number of cells per side of a RegionDepthGrid.
const RegionGridSize = 3

// MaxDepth is reported for grid cells without any valid depth.
const MaxDepth = 10000.0

// regionSide is the side of the square region scanned on a 320x240 frame.
const regionSide = 56

// DefaultRegion is the region scanned on a 320x240 frame.
var DefaultRegion = RegionForSize(image.Pt(320, 240), Cull{})

// RegionDepthGrid holds the nearest valid depth per cell, indexed [row][column].
type RegionDepthGrid [RegionGridSize][RegionGridSize]float64

// Nearest returns the cell with the smallest depth.
func (g RegionDepthGrid) Nearest() (row, col int, depth float64) {
	depth = g[0][0]
	for r := range g {
		for c := range g[r] {
			if g[r][c] < depth {
				row, col, depth = r, c, g[r][c]
			}
		}
	}
	return row, col, depth
}

// RegionForSize centres the scan region on a frame of size and moves it into the coordinates of
// the frame left after the cull border is cut.
func RegionForSize(size image.Point, cull Cull) image.Rectangle {
	c := image.Pt(size.X/2, size.Y/2)
	half := regionSide / 2
	return image.Rect(c.X-half, c.Y-half, c.X+half, c.Y+half).Sub(image.Pt(cull.X, cull.Y))
}

// ComputeRegionDepthGrid scans DefaultRegion of disp.
func ComputeRegionDepthGrid(disp *rimage.DisparityMap, q Reprojection) RegionDepthGrid {
	return RegionDepthGridIn(disp, q, DefaultRegion)
}

// RegionDepthGridIn splits region into 3x3 blocks of region size / 3 and records the smallest
// valid depth of each. Leftover rows and columns are not scanned and pixels outside disp are
// skipped.
func RegionDepthGridIn(disp *rimage.DisparityMap, q Reprojection, region image.Rectangle) RegionDepthGrid {
	var grid RegionDepthGrid
	blockW, blockH := region.Dx()/RegionGridSize, region.Dy()/RegionGridSize

	var group errgroup.Group
	for row := 0; row < RegionGridSize; row++ {
		for col := 0; col < RegionGridSize; col++ {
			row, col := row, col
			group.Go(func() error {
				best := MaxDepth
				if disp.HasData() {
					x0 := region.Min.X + col*blockW
					y0 := region.Min.Y + row*blockH
					for y := y0; y < y0+blockH; y++ {
						for x := x0; x < x0+blockW; x++ {
							if !disp.Contains(x, y) {
								continue
							}
							if z := q.Depth(x, y, disp.GetDisparity(x, y)); IsValidDepth(z) && z < best {
								best = z
							}
						}
					}
				}
				grid[row][col] = best
				return nil
			})
		}
	}
	//nolint:errcheck
	group.Wait()
	return grid
}
