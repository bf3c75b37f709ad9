package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PointAndData is a point with its data.
type PointAndData struct {
	P r3.Vector
	D Data
}

// basicPointCloud keeps points in a slice. Stereo clouds have one point per pixel at most, so
// no deduplication is needed.
type basicPointCloud struct {
	points []PointAndData
	meta   MetaData
}

// New returns an empty PointCloud backed by a basicPointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated PointCloud backed by a basicPointCloud.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: make([]PointAndData, 0, size),
		meta:   NewMetaData(),
	}
}

func (cloud *basicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

// Set rejects points that are not finite.
func (cloud *basicPointCloud) Set(p r3.Vector, d Data) error {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("point %v is not finite", p)
		}
	}
	cloud.points = append(cloud.points, PointAndData{P: p, D: d})
	cloud.meta.Merge(p, d)
	return nil
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	start, end := 0, len(cloud.points)
	if numBatches > 0 {
		batchSize := (len(cloud.points) + numBatches - 1) / numBatches
		start = min(myBatch*batchSize, len(cloud.points))
		end = min(start+batchSize, len(cloud.points))
	}
	for _, pd := range cloud.points[start:end] {
		if !fn(pd.P, pd.D) {
			return
		}
	}
}
