package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"churnpredict/ml"
)

// Pipeline turns a CustomerRecord into a churn prediction using a fixed set
// of artifacts. It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	artifacts *Artifacts
	validator *Validator
}

// New returns a pipeline using the default validation rules.
func New(artifacts *Artifacts) (*Pipeline, error) {
	if artifacts == nil {
		return nil, errors.New("pipeline requires artifacts")
	}
	return &Pipeline{artifacts: artifacts, validator: DefaultValidator()}, nil
}

// NewWithValidator replaces the default boundary validation rules.
func NewWithValidator(artifacts *Artifacts, validator *Validator) (*Pipeline, error) {
	p, err := New(artifacts)
	if err != nil {
		return nil, err
	}
	if validator != nil {
		p.validator = validator
	}
	return p, nil
}

func (p *Pipeline) Artifacts() *Artifacts {
	return p.artifacts
}

// Encoding is the raw categorical encoding callers must use.
func (p *Pipeline) Encoding() RawEncoding {
	return p.artifacts.encoding
}

// Predict runs validation, numeric coercion, categorical encoding, scaling,
// feature projection, classification and label mapping, in that order.
func (p *Pipeline) Predict(record CustomerRecord) (PredictionResult, error) {
	vector, imputed, err := p.prepare(record)
	if err != nil {
		return PredictionResult{}, err
	}
	return p.classify(vector, imputed)
}

// Vector returns the scaled, ordered feature vector handed to the model.
func (p *Pipeline) Vector(record CustomerRecord) ([]float64, error) {
	vector, _, err := p.prepare(record)
	return vector, err
}

func (p *Pipeline) prepare(record CustomerRecord) ([]float64, []string, error) {
	if err := p.validator.Validate(&record); err != nil {
		return nil, nil, err
	}
	values, imputed, err := p.coerceNumeric(record)
	if err != nil {
		return nil, nil, err
	}
	if err := p.encodeCategorical(record, values); err != nil {
		return nil, nil, err
	}
	if err := p.scaleNumeric(values); err != nil {
		return nil, nil, err
	}
	vector, err := p.project(values)
	if err != nil {
		return nil, nil, err
	}
	return vector, imputed, nil
}

func (p *Pipeline) coerceNumeric(record CustomerRecord) (map[string]float64, []string, error) {
	values := make(map[string]float64, len(p.artifacts.features))
	if record.Tenure != nil {
		values[FieldTenure] = *record.Tenure
	}
	if record.MonthlyCharges != nil {
		values[FieldMonthlyCharges] = *record.MonthlyCharges
	}

	var imputed []string
	total, err := parseCharges(record.TotalCharges)
	if err != nil {
		// the parse failure is recovered here and only reported as an imputation
		var parseErr *InputParseError
		if !errors.As(err, &parseErr) {
			return nil, nil, err
		}
		if median, ok := p.artifacts.medians[FieldTotalCharges]; ok {
			values[FieldTotalCharges] = median
			imputed = append(imputed, FieldTotalCharges)
		}
		return values, imputed, nil
	}
	if err := checkRange(FieldTotalCharges, total, 0, math.MaxFloat64); err != nil {
		return nil, nil, err
	}
	values[FieldTotalCharges] = total
	return values, imputed, nil
}

func parseCharges(raw string) (float64, error) {
	text := strings.TrimSpace(raw)
	if !isDecimal(text) {
		return 0, &InputParseError{Field: FieldTotalCharges, Raw: raw, Err: errors.New("not a decimal number")}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = errors.New("value is not finite")
	}
	if err != nil {
		return 0, &InputParseError{Field: FieldTotalCharges, Raw: raw, Err: err}
	}
	return v, nil
}

// isDecimal reports whether s is plain decimal notation with an optional sign,
// fraction and exponent. ParseFloat alone also takes hex floats, underscores,
// "Inf" and "NaN".
func isDecimal(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

func (p *Pipeline) encodeCategorical(record CustomerRecord, values map[string]float64) error {
	for _, field := range CategoricalFields() {
		raw, _ := record.Categorical(field)
		if raw == "" {
			continue
		}
		encoder, ok := p.artifacts.encoders[field]
		if !ok {
			return &InvalidInputError{Field: field, Reason: "no encoder for field"}
		}
		code, err := p.encode(field, raw, encoder)
		if err != nil {
			return err
		}
		values[field] = float64(code)
	}
	return nil
}

func (p *Pipeline) encode(field, raw string, encoder *ml.LabelEncoder) (int, error) {
	if p.artifacts.encoding == EncodingCodes {
		code, err := strconv.Atoi(raw)
		if err != nil {
			return 0, &InvalidInputError{Field: field, Reason: fmt.Sprintf("%q is not an integer code", raw)}
		}
		if _, err := encoder.Inverse(code); err != nil {
			return 0, &UnknownCategoryError{Field: field, Value: raw}
		}
		return code, nil
	}
	code, err := encoder.Transform(raw)
	if err != nil {
		return 0, &UnknownCategoryError{Field: field, Value: raw}
	}
	return code, nil
}

func (p *Pipeline) scaleNumeric(values map[string]float64) error {
	scaler := p.artifacts.scaler
	for _, field := range scaler.Features() {
		v, ok := values[field]
		if !ok {
			continue
		}
		scaled, err := scaler.TransformValue(field, v)
		if err != nil {
			return err
		}
		values[field] = scaled
	}
	return nil
}

func (p *Pipeline) project(values map[string]float64) ([]float64, error) {
	vector := make([]float64, len(p.artifacts.features))
	for i, feature := range p.artifacts.features {
		v, ok := values[feature]
		if !ok {
			return nil, &MissingFeatureError{Feature: feature}
		}
		vector[i] = v
	}
	return vector, nil
}

func (p *Pipeline) classify(vector []float64, imputed []string) (PredictionResult, error) {
	class, err := p.artifacts.model.Predict(vector)
	if err != nil {
		return PredictionResult{}, fmt.Errorf("classifier predict: %w", err)
	}
	label, err := LabelFor(class)
	if err != nil {
		return PredictionResult{}, err
	}
	result := PredictionResult{Label: label, Imputed: imputed}

	if estimator, ok := p.artifacts.model.(ml.ProbabilityEstimator); ok {
		prob, err := estimator.PredictProba(vector)
		switch {
		case errors.Is(err, ml.ErrNoProbability):
		case err != nil:
			return PredictionResult{}, fmt.Errorf("classifier predict_proba: %w", err)
		case math.IsNaN(prob) || prob < 0 || prob > 1:
			return PredictionResult{}, fmt.Errorf("classifier returned probability %v outside [0,1]", prob)
		default:
			result.Probability = &prob
		}
	}
	return result, nil
}

// Labelled returns the record with integer codes replaced by their class
// labels. Label-encoded records and values that are not valid codes are
// returned unchanged.
func (p *Pipeline) Labelled(record CustomerRecord) CustomerRecord {
	if p.artifacts.encoding != EncodingCodes {
		return record
	}
	for field, encoder := range p.artifacts.encoders {
		raw, _ := record.Categorical(field)
		code, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		if label, err := encoder.Inverse(code); err == nil {
			_ = record.SetCategorical(field, label)
		}
	}
	return record
}
