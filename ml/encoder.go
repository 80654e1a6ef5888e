package ml

import (
	"errors"
	"fmt"
)

// ErrUnknownLabel is returned when a label was never seen while the encoder
// was fitted.
var ErrUnknownLabel = errors.New("unknown label")

// LabelEncoder maps category labels to their index in Classes, matching the
// integer codes assigned at training time.
type LabelEncoder struct {
	classes []string
	codes   map[string]int
}

// NewLabelEncoder assigns codes in class order; classes must be unique.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, errors.New("encoder has no classes")
	}
	codes := make(map[string]int, len(classes))
	for i, class := range classes {
		if _, ok := codes[class]; ok {
			return nil, fmt.Errorf("duplicate class %q", class)
		}
		codes[class] = i
	}
	return &LabelEncoder{
		classes: append([]string(nil), classes...),
		codes:   codes,
	}, nil
}

// Transform returns the code of label, or ErrUnknownLabel.
func (e *LabelEncoder) Transform(label string) (int, error) {
	code, ok := e.codes[label]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownLabel, label)
	}
	return code, nil
}

// Inverse returns the label for an integer code.
func (e *LabelEncoder) Inverse(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("%w: code %d outside [0,%d)", ErrUnknownLabel, code, len(e.classes))
	}
	return e.classes[code], nil
}

func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// Len is the number of classes.
func (e *LabelEncoder) Len() int {
	return len(e.classes)
}
