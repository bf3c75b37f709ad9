package report

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/hyyh619/StereoVision/pointcloud"
	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/stereo"
)

// writeFile creates path and hands a buffered writer to fn.
func writeFile(path string, fn func(w *bufio.Writer) error) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		return err
	}
	return w.Flush()
}

// WritePCD writes cloud as a binary PCD file at path. Write, flush and close errors are all
// reported.
func WritePCD(path string, cloud pointcloud.PointCloud) error {
	return writeFile(path, func(w *bufio.Writer) error {
		return pointcloud.ToPCD(cloud, w, pointcloud.PCDBinary)
	})
}

// WriteDisparityData dumps the raw fixed point disparities: the row and column counts on their
// own lines, then one "x y disparity" line per cell in row order.
func WriteDisparityData(path string, disp *rimage.DisparityMap) error {
	if !disp.HasData() {
		return errors.Wrap(stereo.ErrEmptyImage, "no disparity to write")
	}
	return writeFile(path, func(w *bufio.Writer) error {
		if _, err := fmt.Fprintf(w, "%02d\n%02d\n", disp.Height(), disp.Width()); err != nil {
			return err
		}
		for y := 0; y < disp.Height(); y++ {
			for x, d := range disp.Row(y) {
				if _, err := fmt.Fprintf(w, "%d %d %d\n", x, y, d); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteXYZData writes one "x y z" line per point.
func WriteXYZData(path string, cloud pointcloud.PointCloud) error {
	return writeFile(path, func(w *bufio.Writer) error {
		var err error
		cloud.Iterate(0, 0, func(p r3.Vector, _ pointcloud.Data) bool {
			_, err = fmt.Fprintf(w, "%f %f %f\n", p.X, p.Y, p.Z)
			return err == nil
		})
		return err
	})
}

const gridFrame = "****************************************\n"

// WriteDepthGrid appends the framed grid of one frame, preceded by label.
func WriteDepthGrid(w io.Writer, label string, grid stereo.RegionDepthGrid) error {
	if _, err := fmt.Fprintf(w, "%s\n%s", label, gridFrame); err != nil {
		return err
	}
	for _, row := range grid {
		if _, err := fmt.Fprintf(w, "* %08.3f * %08.3f * %08.3f *\n", row[0], row[1], row[2]); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s\n", gridFrame)
	return err
}

// DepthGridTable renders the grid for a terminal with the nearest cell marked.
func DepthGridTable(title string, grid stereo.RegionDepthGrid) string {
	nearRow, nearCol, _ := grid.Nearest()
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"", "left", "centre", "right"})
	for r, row := range grid {
		cells := table.Row{[]string{"top", "middle", "bottom"}[r]}
		for c, depth := range row {
			cell := fmt.Sprintf("%.1f", depth)
			if depth >= stereo.MaxDepth {
				cell = "-"
			}
			if r == nearRow && c == nearCol && depth < stereo.MaxDepth {
				cell += " *"
			}
			cells = append(cells, cell)
		}
		t.AppendRow(cells)
	}
	return t.Render()
}
