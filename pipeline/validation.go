package pipeline

import (
	"fmt"
	"math"
)

// ValidationRule checks one aspect of a record before it enters the pipeline.
type ValidationRule interface {
	Apply(*CustomerRecord) error
	Name() string
}

// Validator runs rules in order and stops at the first failure.
type Validator struct {
	rules []ValidationRule
}

// NewValidator applies rules in order.
func NewValidator(rules ...ValidationRule) *Validator {
	return &Validator{rules: rules}
}

// DefaultValidator bounds the numeric inputs to values a telecom account can
// plausibly have.
func DefaultValidator() *Validator {
	return NewValidator(
		NewRangeRule(FieldTenure, 0, 1200),
		NewRangeRule(FieldMonthlyCharges, 0, 1e6),
	)
}

// Validate returns the first rule violation.
func (v *Validator) Validate(record *CustomerRecord) error {
	for _, rule := range v.rules {
		if err := rule.Apply(record); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) Rules() []string {
	names := make([]string, len(v.rules))
	for i, rule := range v.rules {
		names[i] = rule.Name()
	}
	return names
}

// RangeRule rejects a supplied numeric field outside [Min, Max].
type RangeRule struct {
	Field string
	Min   float64
	Max   float64
}

// NewRangeRule bounds a numeric field to [min, max].
func NewRangeRule(field string, min, max float64) *RangeRule {
	return &RangeRule{Field: field, Min: min, Max: max}
}

func (r *RangeRule) Name() string {
	return r.Field + "_range"
}

func (r *RangeRule) Apply(record *CustomerRecord) error {
	var value *float64
	switch r.Field {
	case FieldTenure:
		value = record.Tenure
	case FieldMonthlyCharges:
		value = record.MonthlyCharges
	default:
		return nil
	}
	if value == nil {
		return nil
	}
	return checkRange(r.Field, *value, r.Min, r.Max)
}

func checkRange(field string, value, min, max float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &InvalidInputError{Field: field, Reason: "value is not finite"}
	}
	if value < min || value > max {
		return &InvalidInputError{
			Field:  field,
			Reason: fmt.Sprintf("%g out of range [%g, %g]", value, min, max),
		}
	}
	return nil
}
