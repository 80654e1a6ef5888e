package ml

import (
	"fmt"
	"sort"
)

// DecodeLabelEncoders reads a JSON object mapping field name to its ordered
// class list.
func DecodeLabelEncoders(payload []byte) (map[string]*LabelEncoder, error) {
	var raw map[string][]string
	if err := unmarshalStrict(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode label encoders: %w", err)
	}
	fields := make([]string, 0, len(raw))
	for field := range raw {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	encoders := make(map[string]*LabelEncoder, len(raw))
	for _, field := range fields {
		encoder, err := NewLabelEncoder(raw[field])
		if err != nil {
			return nil, fmt.Errorf("encoder %s: %w", field, err)
		}
		encoders[field] = encoder
	}
	return encoders, nil
}
