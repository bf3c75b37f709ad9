package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// CalibrationStore is a set of named matrices as written by OpenCV's FileStorage.
type CalibrationStore map[string]*mat.Dense

// storedMatrix is the body of an opencv-matrix node.
type storedMatrix struct {
	Rows int       `yaml:"rows" json:"rows"`
	Cols int       `yaml:"cols" json:"cols"`
	Dt   string    `yaml:"dt" json:"dt"`
	Data []float64 `yaml:"data" json:"data"`
}

const (
	yamlDirective = "%YAML"
	matrixTag     = "opencv-matrix"
)

// ReadCalibrationStore parses an OpenCV FileStorage document in YAML (with or without the
// "%YAML:1.0" header) or JSON form. Entries that are not matrices are ignored.
func ReadCalibrationStore(path string) (CalibrationStore, error) {
	if path == "" {
		return nil, errors.Wrap(ErrConfig, "calibration store path is empty")
	}
	//nolint:gosec
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "cannot read calibration store %q: %v", path, err)
	}
	store, err := parseCalibrationStore(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "cannot parse calibration store %q: %v", path, err)
	}
	return store, nil
}

func parseCalibrationStore(raw []byte) (CalibrationStore, error) {
	// yaml.v3 rejects the colon form of the directive OpenCV writes, drop it.
	if bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), []byte(yamlDirective)) {
		trimmed := bytes.TrimLeft(raw, " \t\r\n")
		if idx := bytes.IndexByte(trimmed, '\n'); idx >= 0 {
			raw = trimmed[idx+1:]
		} else {
			raw = nil
		}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("document is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("top level must be a mapping")
	}

	store := CalibrationStore{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if value.Kind != yaml.MappingNode {
			continue
		}
		if strings.HasSuffix(value.Tag, matrixTag) {
			value.Tag = ""
		}
		var sm storedMatrix
		if err := value.Decode(&sm); err != nil {
			return nil, errors.Wrapf(err, "entry %q", key)
		}
		if sm.Rows == 0 && sm.Cols == 0 && sm.Data == nil {
			continue
		}
		m, err := sm.dense()
		if err != nil {
			return nil, errors.Wrapf(err, "entry %q", key)
		}
		store[key] = m
	}
	return store, nil
}

func (sm storedMatrix) dense() (*mat.Dense, error) {
	if sm.Rows <= 0 || sm.Cols <= 0 {
		return nil, errors.Errorf("invalid shape %dx%d", sm.Rows, sm.Cols)
	}
	if len(sm.Data) != sm.Rows*sm.Cols {
		return nil, errors.Errorf("shape %dx%d needs %d values, got %d", sm.Rows, sm.Cols, sm.Rows*sm.Cols, len(sm.Data))
	}
	return mat.NewDense(sm.Rows, sm.Cols, append([]float64(nil), sm.Data...)), nil
}

// Matrix returns the entry stored under key as ErrConfig when it is missing.
func (cs CalibrationStore) Matrix(key string) (*mat.Dense, error) {
	m, ok := cs[key]
	if !ok || m == nil {
		return nil, errors.Wrapf(ErrConfig, "calibration entry %q is missing", key)
	}
	return m, nil
}

func (cs CalibrationStore) sortedKeys() []string {
	keys := make([]string, 0, len(cs))
	for k := range cs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteCalibrationStore writes the store as JSON when path ends in .json, otherwise in OpenCV's
// YAML form. Values are written with the shortest exact representation so they read back
// unchanged.
func WriteCalibrationStore(path string, store CalibrationStore) (err error) {
	var body []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		body, err = store.marshalJSON()
	} else {
		body = store.marshalYAML()
	}
	if err != nil {
		return err
	}

	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create calibration store %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	_, err = f.Write(body)
	return err
}

func (cs CalibrationStore) marshalJSON() ([]byte, error) {
	out := make(map[string]storedMatrix, len(cs))
	for _, key := range cs.sortedKeys() {
		out[key] = toStoredMatrix(cs[key])
	}
	return json.MarshalIndent(out, "", "  ")
}

func (cs CalibrationStore) marshalYAML() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s:1.0\n---\n", yamlDirective)
	for _, key := range cs.sortedKeys() {
		sm := toStoredMatrix(cs[key])
		vals := make([]string, len(sm.Data))
		for i, v := range sm.Data {
			vals[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		fmt.Fprintf(&buf, "%s: !!%s\n   rows: %d\n   cols: %d\n   dt: %s\n   data: [ %s ]\n",
			key, matrixTag, sm.Rows, sm.Cols, sm.Dt, strings.Join(vals, ", "))
	}
	return buf.Bytes()
}

func toStoredMatrix(m *mat.Dense) storedMatrix {
	rows, cols := m.Dims()
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, m.At(i, j))
		}
	}
	return storedMatrix{Rows: rows, Cols: cols, Dt: "d", Data: data}
}
