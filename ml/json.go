package ml

import (
	"bytes"
	"encoding/json"
)

func unmarshalStrict(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
