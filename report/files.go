package report

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Pair is one left/right input pair.
type Pair struct {
	Left, Right string
}

// Postfix names the outputs of the pair after the left file.
func (p Pair) Postfix() string {
	return filepath.Base(p.Left)
}

// ListFiles returns the regular files whose path starts with prefix, sorted.
func ListFiles(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "*")
	if err != nil {
		return nil, errors.Wrapf(err, "bad prefix %q", prefix)
	}
	files := lo.Filter(matches, func(path string, _ int) bool {
		info, err := os.Stat(path)
		return err == nil && info.Mode().IsRegular()
	})
	sort.Strings(files)
	return files, nil
}

// PairFiles lists both prefixes and pairs the files by position. Extra files on the longer side
// are ignored.
func PairFiles(leftPrefix, rightPrefix string) ([]Pair, error) {
	left, err := ListFiles(leftPrefix)
	if err != nil {
		return nil, err
	}
	right, err := ListFiles(rightPrefix)
	if err != nil {
		return nil, err
	}
	if len(left) == 0 || len(right) == 0 {
		return nil, errors.Errorf("no input pairs for prefixes %q and %q", leftPrefix, rightPrefix)
	}
	n := min(len(left), len(right))
	return lo.Map(lo.Zip2(left[:n], right[:n]), func(t lo.Tuple2[string, string], _ int) Pair {
		return Pair{Left: t.A, Right: t.B}
	}), nil
}
