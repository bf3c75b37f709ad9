package cli

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/hyyh619/StereoVision/config"
	"github.com/hyyh619/StereoVision/logging"
	"github.com/hyyh619/StereoVision/rimage"
	"github.com/hyyh619/StereoVision/stereo"
)

// writePair writes a textured grey pair whose right view is the left one moved by shift pixels.
func writePair(t *testing.T, dir, leftName, rightName string, seed int64) (string, string) {
	t.Helper()
	const w, h, shift = 96, 64, 4
	rnd := rand.New(rand.NewSource(seed))
	left := rimage.NewImage(w, h, 1)
	for i := range left.Pix() {
		left.Pix()[i] = uint8(rnd.Intn(256))
	}
	right := rimage.NewImage(w, h, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			right.SetXY(x, y, 0, left.GetXY(min(x+shift, w-1), y, 0))
		}
	}
	leftPath, rightPath := filepath.Join(dir, leftName), filepath.Join(dir, rightName)
	test.That(t, rimage.WriteImage(leftPath, left), test.ShouldBeNil)
	test.That(t, rimage.WriteImage(rightPath, right), test.ShouldBeNil)
	return leftPath, rightPath
}

func TestMatchSinglePair(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	leftPath, rightPath := writePair(t, inDir, "left01.png", "right01.png", 1)

	app := NewMatchApp(io.Discard, io.Discard)
	err := app.Run([]string{
		"stereo-match", "--no-display", "--algorithm", "bm", "--path", outDir,
		"-o", "disp", "-v", "depth.txt", "--histogram", "--mipmaps", leftPath, rightPath,
	})
	test.That(t, err, test.ShouldBeNil)

	for _, name := range []string{
		"disp_bm_96x64_left01.png.dat",
		"disp_bm_96x64_left01.png.jpg",
		"color_bm_96x64_left01.png.jpg",
		"hist_bm_96x64_left01.png.png",
		"left01.png_21.jpg",
		"left01.png_22.jpg",
		"right01.png_22.jpg",
		"depth.txt",
		"time_cost.log",
	} {
		_, err := os.Stat(filepath.Join(outDir, name))
		test.That(t, err, test.ShouldBeNil)
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "disp_bm_96x64_left01.png.dat"))
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	test.That(t, lines[0], test.ShouldEqual, "64")
	test.That(t, lines[1], test.ShouldEqual, "96")
	test.That(t, lines, test.ShouldHaveLength, 2+96*64)

	raw, err = os.ReadFile(filepath.Join(outDir, "time_cost.log"))
	test.That(t, err, test.ShouldBeNil)
	// a single frame is never counted towards the average
	test.That(t, strings.Count(string(raw), "\n"), test.ShouldEqual, 1)
}

func TestMatchPrefixes(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	writePair(t, inDir, "l_a.png", "r_a.png", 1)
	writePair(t, inDir, "l_b.png", "r_b.png", 2)
	writePair(t, inDir, "l_c.png", "r_c.png", 3)

	var stdout bytes.Buffer
	app := NewMatchApp(&stdout, io.Discard)
	err := app.Run([]string{
		"stereo-match", "--no-display", "--no-pictures", "--algorithm", "sgbm", "--path", outDir,
		"--left", filepath.Join(inDir, "l_"), "--right", filepath.Join(inDir, "r_"),
	})
	test.That(t, err, test.ShouldBeNil)

	raw, err := os.ReadFile(filepath.Join(outDir, "time_cost.log"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Count(string(raw), "\n"), test.ShouldEqual, 4)
	test.That(t, string(raw), test.ShouldContainSubstring, "disp_sgbm_96x64_l_c.png.jpg")
	test.That(t, stdout.String(), test.ShouldContainSubstring, "stereo-match sgbm")

	_, err = os.Stat(filepath.Join(outDir, "disp_sgbm_96x64_l_a.png.jpg"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestMatchConfigFile(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	leftPath, rightPath := writePair(t, inDir, "left.png", "right.png", 4)
	cfgPath := filepath.Join(inDir, "stereo.yaml")
	body := "algorithm: hh\nnumDisparities: 16\nnoDisplay: true\noutput:\n  dir: " + outDir + "\n"
	test.That(t, os.WriteFile(cfgPath, []byte(body), 0o600), test.ShouldBeNil)

	app := NewMatchApp(io.Discard, io.Discard)
	test.That(t, app.Run([]string{"stereo-match", "--config", cfgPath, leftPath, rightPath}), test.ShouldBeNil)
	_, err := os.Stat(filepath.Join(outDir, "disp_hh_96x64_left.png.jpg"))
	test.That(t, err, test.ShouldBeNil)

	// flags win over the file
	app = NewMatchApp(io.Discard, io.Discard)
	test.That(t, app.Run([]string{"stereo-match", "--config", cfgPath, "--algorithm", "bm", leftPath, rightPath}), test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(outDir, "disp_bm_96x64_left.png.jpg"))
	test.That(t, err, test.ShouldBeNil)
}

func TestMatchErrors(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	leftPath, rightPath := writePair(t, inDir, "left.png", "right.png", 5)

	for _, tc := range []struct {
		name string
		args []string
		msg  string
	}{
		{"no inputs", []string{"--no-display"}, "both left and right images"},
		{"intrinsics only", []string{"--no-display", "-i", "intrinsics.yml", leftPath, rightPath}, "intrinsic"},
		{"point cloud", []string{"--no-display", "-p", "cloud", leftPath, rightPath}, "point cloud"},
		{"block size", []string{"--no-display", "--blocksize", "4", leftPath, rightPath}, "blockSize"},
		{"disparities", []string{"--no-display", "--max-disparity", "20", leftPath, rightPath}, "numDisparities"},
		{"algorithm", []string{"--no-display", "--algorithm", "var", leftPath, rightPath}, "algorithm"},
		{"missing file", []string{"--no-display", "--path", outDir, leftPath, filepath.Join(inDir, "none.png")}, "second input image"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			app := NewMatchApp(io.Discard, io.Discard)
			err := app.Run(append([]string{"stereo-match"}, tc.args...))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}
}

func TestNewSessionFromConfig(t *testing.T) {
	cfgApp := NewMatchApp(io.Discard, io.Discard)
	test.That(t, cfgApp.Name, test.ShouldEqual, "stereo-match")
	test.That(t, NewLiveApp(io.Discard, io.Discard).Name, test.ShouldEqual, "stereo-live")

	frame := rimage.NewImage(200, 100, 3)
	cfg := config.Default()
	cfg.Scale = 0.5
	session, size, err := newSession(logging.NewTestLogger(t), cfg, frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, size.X, test.ShouldEqual, 100)
	test.That(t, size.Y, test.ShouldEqual, 50)
	test.That(t, session.Params().Algorithm, test.ShouldEqual, stereo.AlgorithmSGBM)
	test.That(t, session.Params().Channels, test.ShouldEqual, 3)
	test.That(t, session.Params().NumDisparities, test.ShouldEqual, 16)
}
