package stereo

import (
	"strings"

	"github.com/pkg/errors"
)

// Algorithm selects the disparity matcher.
type Algorithm int

// Supported algorithm selectors.
const (
	// AlgorithmBM is local block matching on x-Sobel filtered grey images.
	AlgorithmBM Algorithm = iota
	// AlgorithmSGBM is semi-global matching aggregated along five paths.
	AlgorithmSGBM
	// AlgorithmHH is semi-global matching aggregated along all eight paths.
	AlgorithmHH
	// AlgorithmVAR is the variational matcher. It can be selected but not run.
	AlgorithmVAR
)

var algorithmNames = map[Algorithm]string{
	AlgorithmBM:   "BM",
	AlgorithmSGBM: "SGBM",
	AlgorithmHH:   "HH",
	AlgorithmVAR:  "VAR",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return "Unknown"
}

// IsSemiGlobal is true for SGBM and HH.
func (a Algorithm) IsSemiGlobal() bool {
	return a == AlgorithmSGBM || a == AlgorithmHH
}

// ParseAlgorithm accepts bm, sgbm, hh or var in any case.
func ParseAlgorithm(name string) (Algorithm, error) {
	for alg, algName := range algorithmNames {
		if strings.EqualFold(strings.TrimSpace(name), algName) {
			return alg, nil
		}
	}
	return AlgorithmBM, errors.Wrapf(ErrInvalidParameters, "unknown algorithm %q, expected bm, sgbm, hh or var", name)
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(a.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	alg, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg
	return nil
}
