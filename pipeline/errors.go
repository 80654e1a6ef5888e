package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so each boundary can decide how to
// report them.
type ErrorKind string

const (
	KindInputParse      ErrorKind = "input_parse"
	KindUnknownCategory ErrorKind = "unknown_category"
	KindMissingFeature  ErrorKind = "missing_feature"
	KindInvalidInput    ErrorKind = "invalid_input"
	KindArtifactLoad    ErrorKind = "artifact_load"
	KindInternal        ErrorKind = "internal"
)

// IsClientError reports whether the kind is caused by the request content.
func (k ErrorKind) IsClientError() bool {
	switch k {
	case KindInputParse, KindUnknownCategory, KindMissingFeature, KindInvalidInput:
		return true
	default:
		return false
	}
}

// InputParseError records a numeric field that could not be parsed. The
// pipeline recovers from it by substituting the training median.
type InputParseError struct {
	Field string
	Raw   string
	Err   error
}

func (e *InputParseError) Error() string {
	return fmt.Sprintf("field %s: cannot parse %q as a number: %v", e.Field, e.Raw, e.Err)
}

func (e *InputParseError) Unwrap() error { return e.Err }

// UnknownCategoryError reports a category the encoder was not fitted on.
type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("field %s: unknown category %q", e.Field, e.Value)
}

// MissingFeatureError reports a selected feature absent from the record.
type MissingFeatureError struct {
	Feature string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing required feature %s", e.Feature)
}

// InvalidInputError covers wrong types and out-of-range values.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// ArtifactLoadError reports an unreadable or inconsistent artifact.
type ArtifactLoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *ArtifactLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load artifact %s: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("load artifact %s from %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first typed pipeline error in err's chain.
func KindOf(err error) ErrorKind {
	var (
		parseErr    *InputParseError
		categoryErr *UnknownCategoryError
		missingErr  *MissingFeatureError
		invalidErr  *InvalidInputError
		artifactErr *ArtifactLoadError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &categoryErr):
		return KindUnknownCategory
	case errors.As(err, &missingErr):
		return KindMissingFeature
	case errors.As(err, &invalidErr):
		return KindInvalidInput
	case errors.As(err, &parseErr):
		return KindInputParse
	case errors.As(err, &artifactErr):
		return KindArtifactLoad
	default:
		return KindInternal
	}
}

// FieldOf returns the offending field or feature name, if the error has one.
func FieldOf(err error) string {
	var (
		parseErr    *InputParseError
		categoryErr *UnknownCategoryError
		missingErr  *MissingFeatureError
		invalidErr  *InvalidInputError
	)
	switch {
	case errors.As(err, &categoryErr):
		return categoryErr.Field
	case errors.As(err, &missingErr):
		return missingErr.Feature
	case errors.As(err, &invalidErr):
		return invalidErr.Field
	case errors.As(err, &parseErr):
		return parseErr.Field
	default:
		return ""
	}
}
