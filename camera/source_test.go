package camera

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/hyyh619/StereoVision/rimage"
)

func writeFrames(t *testing.T, prefix string, n int) []string {
	t.Helper()
	paths := make([]string, n)
	for i := range paths {
		img := rimage.NewImage(6, 4, 3)
		for k := range img.Pix() {
			img.Pix()[k] = uint8(i*40 + k)
		}
		paths[i] = filepath.Join(t.TempDir(), prefix+string(rune('a'+i))+".png")
		test.That(t, rimage.WriteImage(paths[i], img), test.ShouldBeNil)
	}
	return paths
}

func TestFileSource(t *testing.T) {
	paths := writeFrames(t, "left", 2)
	src := NewFileSource(paths, true)
	ctx := context.Background()

	first, err := src.Next(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first.Channels(), test.ShouldEqual, 1)
	test.That(t, first.Width(), test.ShouldEqual, 6)

	_, err = src.Next(ctx)
	test.That(t, err, test.ShouldBeNil)
	_, err = src.Next(ctx)
	test.That(t, err, test.ShouldEqual, io.EOF)
	test.That(t, src.Close(), test.ShouldBeNil)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewFileSource(paths, false).Next(cancelled)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestPairSource(t *testing.T) {
	pair := NewPairSource(NewFileSource(writeFrames(t, "left", 1), false), NewFileSource(writeFrames(t, "right", 2), false))
	ctx := context.Background()

	left, right, err := pair.Next(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, left.Channels(), test.ShouldEqual, 3)
	test.That(t, right.GetXY(0, 0, 0), test.ShouldEqual, uint8(0))

	_, _, err = pair.Next(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "left camera")
	test.That(t, pair.Close(), test.ShouldBeNil)
}
