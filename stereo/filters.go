package stereo

import (
	"image"

	"github.com/hyyh619/StereoVision/rimage"
)

// xSobelPrefilter applies a horizontal 3x3 Sobel to channel c of img and clips the response to
// [-cap, cap], shifted to [0, 2*cap]. Rows are mirrored at the top and bottom, and the first and
// last columns are set to the flat response.
func xSobelPrefilter(img *rimage.Image, c, limit int) []uint8 {
	w, h, cn := img.Width(), img.Height(), img.Channels()
	out := make([]uint8, w*h)
	pix := img.Pix()
	stride := w * cn
	clip := func(v int) uint8 {
		if v < -limit {
			v = -limit
		} else if v > limit {
			v = limit
		}
		return uint8(v + limit)
	}
	for y := 0; y < h; y++ {
		y0, y2 := y-1, y+1
		if y0 < 0 {
			y0 = 1
		}
		if y2 >= h {
			y2 = h - 2
		}
		if y0 >= h || y0 < 0 {
			y0 = y
		}
		if y2 < 0 {
			y2 = y
		}
		r0, r1, r2 := pix[y0*stride:], pix[y*stride:], pix[y2*stride:]
		row := out[y*w : (y+1)*w]
		for x := 1; x < w-1; x++ {
			l, r := (x-1)*cn+c, (x+1)*cn+c
			v := int(r0[r]) - int(r0[l]) + 2*(int(r1[r])-int(r1[l])) + int(r2[r]) - int(r2[l])
			row[x] = clip(v)
		}
		row[0] = clip(0)
		if w > 1 {
			row[w-1] = clip(0)
		}
	}
	return out
}

// validDisparityROI is the part of the left view where a full block is available in both
// rectified views at every disparity in range. An empty input rectangle stands for the whole view.
func validDisparityROI(roi1, roi2 image.Rectangle, size image.Point, minDisp, numDisp, blockSize int) image.Rectangle {
	full := image.Rect(0, 0, size.X, size.Y)
	if roi1.Empty() {
		roi1 = full
	}
	if roi2.Empty() {
		roi2 = full
	}
	roi1, roi2 = roi1.Intersect(full), roi2.Intersect(full)
	half := blockSize / 2
	maxDisp := minDisp + numDisp - 1
	r := image.Rect(
		max(roi1.Min.X, roi2.Min.X+maxDisp)+half,
		max(roi1.Min.Y, roi2.Min.Y)+half,
		min(roi1.Max.X, roi2.Max.X)-half,
		min(roi1.Max.Y, roi2.Max.Y)-half,
	)
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return image.Rectangle{}
	}
	return r
}

// filterSpeckles replaces every 4-connected blob of at most maxSize pixels with invalid. Pixels
// belong to one blob while neighbouring values differ by no more than maxDiff.
func filterSpeckles(disp *rimage.DisparityMap, invalid int16, maxSize, maxDiff int) {
	if maxSize <= 0 || !disp.HasData() {
		return
	}
	w, h := disp.Width(), disp.Height()
	data := disp.Data()
	labels := make([]int32, w*h)
	// status per label: true when the blob is a speckle.
	speckle := []bool{false}
	stack := make([]int, 0, 64)

	for start := range data {
		if data[start] == invalid {
			continue
		}
		if l := labels[start]; l != 0 {
			if speckle[l] {
				data[start] = invalid
			}
			continue
		}

		label := int32(len(speckle))
		labels[start] = label
		stack = append(stack[:0], start)
		count := 0
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			count++
			px, py := p%w, p/w
			v := int(data[p])
			visit := func(q int) {
				if labels[q] != 0 || data[q] == invalid {
					return
				}
				if d := int(data[q]) - v; d <= maxDiff && d >= -maxDiff {
					labels[q] = label
					stack = append(stack, q)
				}
			}
			if py < h-1 {
				visit(p + w)
			}
			if py > 0 {
				visit(p - w)
			}
			if px < w-1 {
				visit(p + 1)
			}
			if px > 0 {
				visit(p - 1)
			}
		}
		isSpeckle := count <= maxSize
		speckle = append(speckle, isSpeckle)
		if isSpeckle {
			data[start] = invalid
		}
	}
}
