package ml

import (
	"errors"
	"fmt"
)

// StandardScaler applies (x - mean) / scale per named feature.
type StandardScaler struct {
	features []string
	mean     map[string]float64
	scale    map[string]float64
}

type scalerFile struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

// NewStandardScaler pairs each feature with its mean and scale.
func NewStandardScaler(features []string, mean, scale []float64) (*StandardScaler, error) {
	if len(features) == 0 {
		return nil, errors.New("scaler has no features")
	}
	if len(mean) != len(features) || len(scale) != len(features) {
		return nil, fmt.Errorf("scaler length mismatch: %d features, %d means, %d scales",
			len(features), len(mean), len(scale))
	}
	s := &StandardScaler{
		features: append([]string(nil), features...),
		mean:     make(map[string]float64, len(features)),
		scale:    make(map[string]float64, len(features)),
	}
	for i, name := range features {
		if _, ok := s.mean[name]; ok {
			return nil, fmt.Errorf("duplicate scaler feature %q", name)
		}
		s.mean[name] = mean[i]
		// zero variance columns are left unscaled
		if scale[i] == 0 {
			s.scale[name] = 1
		} else {
			s.scale[name] = scale[i]
		}
	}
	return s, nil
}

// DecodeStandardScaler reads the exported scaler JSON.
func DecodeStandardScaler(payload []byte) (*StandardScaler, error) {
	var file scalerFile
	if err := unmarshalStrict(payload, &file); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	return NewStandardScaler(file.Features, file.Mean, file.Scale)
}

func (s *StandardScaler) Features() []string {
	return append([]string(nil), s.features...)
}

func (s *StandardScaler) Has(feature string) bool {
	_, ok := s.mean[feature]
	return ok
}

// TransformValue returns (value - mean) / scale for feature.
func (s *StandardScaler) TransformValue(feature string, value float64) (float64, error) {
	mean, ok := s.mean[feature]
	if !ok {
		return 0, fmt.Errorf("scaler has no feature %q", feature)
	}
	return (value - mean) / s.scale[feature], nil
}

// Params returns the mean and scale used for a feature.
func (s *StandardScaler) Params(feature string) (mean, scale float64, ok bool) {
	mean, ok = s.mean[feature]
	return mean, s.scale[feature], ok
}
