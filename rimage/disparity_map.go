package rimage

import "image"

// InvalidDisparity marks cells without a match: (minDisparity-1)*DisparityScale with minDisparity 0.
const InvalidDisparity int16 = -16

// DisparityScale is the fixed point factor of DisparityMap values.
const DisparityScale = 16

// DisparityMap holds signed disparities multiplied by DisparityScale.
type DisparityMap struct {
	width  int
	height int

	data []int16
}

// NewDisparityMap returns a map filled with zeros.
func NewDisparityMap(width, height int) *DisparityMap {
	return &DisparityMap{width: width, height: height, data: make([]int16, width*height)}
}

// NewInvalidDisparityMap returns a map in which every cell is InvalidDisparity.
func NewInvalidDisparityMap(width, height int) *DisparityMap {
	dm := NewDisparityMap(width, height)
	for i := range dm.data {
		dm.data[i] = InvalidDisparity
	}
	return dm
}

// HasData is false for nil or empty maps.
func (dm *DisparityMap) HasData() bool {
	return dm != nil && dm.width > 0 && dm.height > 0
}

// Width returns the number of columns.
func (dm *DisparityMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DisparityMap) Height() int {
	return dm.height
}

// Bounds returns the map rectangle.
func (dm *DisparityMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Contains checks whether (x, y) is inside the map.
func (dm *DisparityMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// GetDisparity returns the raw value at (x, y).
func (dm *DisparityMap) GetDisparity(x, y int) int16 {
	return dm.data[y*dm.width+x]
}

// Get returns the raw value at p.
func (dm *DisparityMap) Get(p image.Point) int16 {
	return dm.GetDisparity(p.X, p.Y)
}

// Set stores a raw value.
func (dm *DisparityMap) Set(x, y int, val int16) {
	dm.data[y*dm.width+x] = val
}

// Row returns the values of row y.
func (dm *DisparityMap) Row(y int) []int16 {
	return dm.data[y*dm.width : (y+1)*dm.width]
}

// Data exposes the row-major buffer.
func (dm *DisparityMap) Data() []int16 {
	return dm.data
}

// Clone returns a deep copy.
func (dm *DisparityMap) Clone() *DisparityMap {
	out := &DisparityMap{width: dm.width, height: dm.height, data: make([]int16, len(dm.data))}
	copy(out.data, dm.data)
	return out
}

// MinMax returns the smallest and largest stored values.
func (dm *DisparityMap) MinMax() (int16, int16) {
	if len(dm.data) == 0 {
		return 0, 0
	}
	lo, hi := dm.data[0], dm.data[0]
	for _, v := range dm.data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// ValidCount returns the number of cells that are not InvalidDisparity.
func (dm *DisparityMap) ValidCount() int {
	n := 0
	for _, v := range dm.data {
		if v != InvalidDisparity {
			n++
		}
	}
	return n
}
