// Package report writes the artefacts of a stereo run: disparity and point dumps, depth grids,
// timing logs, pictures and charts.
package report

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/google/uuid"
)

// FileName builds "<dir>/<name>_<algorithm>_<w>x<h>_<postfix>.<ext>".
func FileName(dir, name, algorithm string, size image.Point, postfix, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%dx%d_%s.%s", name, algorithm, size.X, size.Y, postfix, ext))
}

// Output is the destination of one run.
type Output struct {
	Dir       string
	Algorithm string
	// RunID tags log lines and report headers of the run.
	RunID string
}

// NewOutput returns an Output with a fresh run id.
func NewOutput(dir, algorithm string) *Output {
	return &Output{Dir: dir, Algorithm: algorithm, RunID: uuid.NewString()}
}

// FileName names an artefact of a frame of the given size inside the output directory.
func (o *Output) FileName(name string, size image.Point, postfix, ext string) string {
	return FileName(o.Dir, name, o.Algorithm, size, postfix, ext)
}
