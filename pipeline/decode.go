package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RecordFromStrings builds a record from flat string values such as HTML form
// fields or CSV cells. Unknown keys are ignored and blank values count as
// absent.
func RecordFromStrings(values map[string]string) (CustomerRecord, error) {
	var record CustomerRecord
	record.CustomerID = strings.TrimSpace(values[FieldCustomerID])

	for _, field := range CategoricalFields() {
		if v, ok := values[field]; ok {
			_ = record.SetCategorical(field, strings.TrimSpace(v))
		}
	}

	var err error
	if record.Tenure, err = parseOptionalNumber(FieldTenure, values[FieldTenure]); err != nil {
		return CustomerRecord{}, err
	}
	if record.MonthlyCharges, err = parseOptionalNumber(FieldMonthlyCharges, values[FieldMonthlyCharges]); err != nil {
		return CustomerRecord{}, err
	}
	record.TotalCharges = values[FieldTotalCharges]
	return record, nil
}

// RecordFromJSON decodes a JSON object. Categorical values may be strings or
// numbers; numbers keep their literal text so that 0 and "0" are equivalent.
func RecordFromJSON(data []byte) (CustomerRecord, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return CustomerRecord{}, &InvalidInputError{Reason: fmt.Sprintf("body is not a JSON object: %v", err)}
	}
	if raw == nil {
		return CustomerRecord{}, &InvalidInputError{Reason: "body is not a JSON object"}
	}
	return recordFromRaw(raw)
}

func recordFromRaw(raw map[string]json.RawMessage) (CustomerRecord, error) {
	var record CustomerRecord

	id, err := scalarText(FieldCustomerID, raw[FieldCustomerID])
	if err != nil {
		return CustomerRecord{}, err
	}
	record.CustomerID = id

	for _, field := range CategoricalFields() {
		value, err := scalarText(field, raw[field])
		if err != nil {
			return CustomerRecord{}, err
		}
		_ = record.SetCategorical(field, strings.TrimSpace(value))
	}

	for _, field := range []string{FieldTenure, FieldMonthlyCharges} {
		text, err := scalarText(field, raw[field])
		if err != nil {
			return CustomerRecord{}, err
		}
		v, err := parseOptionalNumber(field, text)
		if err != nil {
			return CustomerRecord{}, err
		}
		if field == FieldTenure {
			record.Tenure = v
		} else {
			record.MonthlyCharges = v
		}
	}

	total, err := scalarText(FieldTotalCharges, raw[FieldTotalCharges])
	if err != nil {
		return CustomerRecord{}, err
	}
	record.TotalCharges = total
	return record, nil
}

// scalarText returns the text of a JSON string or number. Null and absent
// values yield "".
func scalarText(field string, msg json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", &InvalidInputError{Field: field, Reason: err.Error()}
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", &InvalidInputError{Field: field, Reason: err.Error()}
		}
		return n.String(), nil
	default:
		return "", &InvalidInputError{Field: field, Reason: "expected a string or number"}
	}
}

func parseOptionalNumber(field, text string) (*float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, &InvalidInputError{Field: field, Reason: fmt.Sprintf("%q is not a finite number", text)}
	}
	return &v, nil
}
