package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"
)

// Read reads a config from the given file. Files ending in .json are read as JSON, anything else
// as YAML. Values missing from the file keep their Default.
func Read(path string) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open config %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	isJSON := strings.EqualFold(filepath.Ext(path), ".json")
	cfg, err := FromReader(path, f, isJSON)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	return cfg, nil
}

// FromReader decodes and validates a config. originalPath only appears in validation errors.
func FromReader(originalPath string, r io.Reader, isJSON bool) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	attributes := map[string]interface{}{}
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&attributes); err != nil {
			return nil, errors.Wrap(err, "invalid JSON")
		}
	} else if err := yaml.Unmarshal(raw, &attributes); err != nil {
		return nil, errors.Wrap(err, "invalid YAML")
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, err
	}
	if err := cfg.Validate(originalPath); err != nil {
		return nil, err
	}
	return cfg, nil
}
