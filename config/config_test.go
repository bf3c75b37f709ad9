package config

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"github.com/hyyh619/StereoVision/rimage/transform"
	"github.com/hyyh619/StereoVision/stereo"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate("stereo"), test.ShouldBeNil)
	test.That(t, cfg.AlgorithmValue(), test.ShouldEqual, stereo.AlgorithmSGBM)
	test.That(t, cfg.GreyInput(), test.ShouldBeFalse)
	test.That(t, cfg.Calibration.Enabled(), test.ShouldBeFalse)
	test.That(t, cfg.Calibration.Size(), test.ShouldResemble, transform.DefaultCalibrationSize)

	calib, err := cfg.Calibration.Load(1, image.Pt(320, 240))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calib, test.ShouldBeNil)

	params, err := cfg.Params(3, 320, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.NumDisparities, test.ShouldEqual, 48)
	test.That(t, params.BlockSize, test.ShouldEqual, stereo.DefaultSGBMBlockSize)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(c *Config)
		field  string
	}{
		{"missing algorithm", func(c *Config) { c.Algorithm = "" }, ""},
		{"unknown algorithm", func(c *Config) { c.Algorithm = "census" }, "algorithm"},
		{"var", func(c *Config) { c.Algorithm = "var" }, "algorithm"},
		{"disparities", func(c *Config) { c.NumDisparities = 40 }, "numDisparities"},
		{"negative disparities", func(c *Config) { c.NumDisparities = -16 }, "numDisparities"},
		{"even block", func(c *Config) { c.BlockSize = 8 }, "blockSize"},
		{"scale", func(c *Config) { c.Scale = -1 }, "scale"},
		{"intrinsics only", func(c *Config) { c.Calibration.Intrinsics = "intrinsics.yml" }, "calibration.intrinsics"},
		{"half size", func(c *Config) { c.Calibration.Width = 640 }, "calibration.width"},
		{"cull", func(c *Config) { c.Cull.Y = -2 }, "cull"},
		{"region", func(c *Config) { c.Region = &Region{Width: 10} }, "region.width"},
		{"point cloud", func(c *Config) { c.Output.PointCloud = "cloud" }, "output.pointCloud"},
		{"pcd", func(c *Config) { c.Output.PCD = true }, "output.pointCloud"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "logLevel"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.Validate("stereo")
			test.That(t, err, test.ShouldNotBeNil)
			if tc.field == "" {
				test.That(t, err.Error(), test.ShouldContainSubstring, "algorithm")
				return
			}
			test.That(t, err.Error(), test.ShouldContainSubstring, "stereo."+tc.field)
		})
	}

	cfg := Default()
	cfg.Algorithm = "BM"
	cfg.NumDisparities = 64
	cfg.BlockSize = 15
	cfg.Calibration = Calibration{Intrinsics: "i.yml", Extrinsics: "e.yml", Width: 640, Height: 480}
	cfg.Output.PointCloud = "cloud"
	test.That(t, cfg.Validate("stereo"), test.ShouldBeNil)
	test.That(t, cfg.GreyInput(), test.ShouldBeTrue)
	test.That(t, cfg.Calibration.Size(), test.ShouldResemble, image.Pt(640, 480))
}

func TestReadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.yaml")
	body := strings.Join([]string{
		"algorithm: hh",
		"numDisparities: 32",
		"blockSize: 5",
		"scale: 0.5",
		"cull: {x: 4, y: 2}",
		"filterDepth: true",
		"region: {x: 10, y: 20, width: 30, height: 60}",
		"output:",
		"  dir: out",
		"  depthGrid: depth.txt",
		"  histogram: true",
		"",
	}, "\n")
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	expected := &Config{
		Algorithm:      "hh",
		NumDisparities: 32,
		BlockSize:      5,
		Scale:          0.5,
		Cull:           stereo.Cull{X: 4, Y: 2},
		FilterDepth:    true,
		Region:         &Region{X: 10, Y: 20, Width: 30, Height: 60},
		Output:         Output{Dir: "out", DepthGrid: "depth.txt", Pictures: true, Histogram: true},
	}
	test.That(t, cmp.Diff(expected, cfg), test.ShouldBeEmpty)

	opts := cfg.SessionOptions()
	test.That(t, opts.Scale, test.ShouldEqual, 0.5)
	test.That(t, opts.FilterDepth, test.ShouldEqual, stereo.DefaultFilterDepth)
	test.That(t, opts.Region, test.ShouldResemble, image.Rect(10, 20, 40, 80))
	test.That(t, opts.Cull, test.ShouldResemble, stereo.Cull{X: 4, Y: 2})
}

func TestReadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stereo.json")
	body := "{\n\t\"algorithm\": \"bm\",\n\t\"numDisparities\": 48,\n\t\"noDisplay\": true\n}\n"
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.AlgorithmValue(), test.ShouldEqual, stereo.AlgorithmBM)
	test.That(t, cfg.NumDisparities, test.ShouldEqual, 48)
	test.That(t, cfg.NoDisplay, test.ShouldBeTrue)
	test.That(t, cfg.Scale, test.ShouldEqual, 1.0)

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"algorithm": "bm", "speed": 3}`), 0o600), test.ShouldBeNil)
	_, err = Read(bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "speed")

	invalid := filepath.Join(dir, "invalid.json")
	test.That(t, os.WriteFile(invalid, []byte(`{"algorithm": "bm", "blockSize": 4}`), 0o600), test.ShouldBeNil)
	_, err = Read(invalid)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "blockSize")

	_, err = Read(filepath.Join(dir, "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMerge(t *testing.T) {
	base := Default()
	base.Region = &Region{Width: 3, Height: 3}
	merged := base.Merge(&Config{
		Algorithm:   "bm",
		BlockSize:   7,
		Calibration: Calibration{Intrinsics: "i.yml", Extrinsics: "e.yml"},
		Output:      Output{Dir: "res", Disparity: "disp"},
		NoDisplay:   true,
	})
	test.That(t, merged.Algorithm, test.ShouldEqual, "bm")
	test.That(t, merged.BlockSize, test.ShouldEqual, 7)
	test.That(t, merged.Scale, test.ShouldEqual, 1.0)
	test.That(t, merged.Calibration.Enabled(), test.ShouldBeTrue)
	test.That(t, merged.Output, test.ShouldResemble, Output{Dir: "res", Disparity: "disp", Pictures: true})
	test.That(t, merged.NoDisplay, test.ShouldBeTrue)

	merged.Region.X = 5
	test.That(t, base.Region.X, test.ShouldEqual, 0)
	test.That(t, base.Algorithm, test.ShouldEqual, "sgbm")
	test.That(t, base.Merge(nil), test.ShouldResemble, base)
}
