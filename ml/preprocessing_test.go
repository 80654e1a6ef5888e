package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoder(t *testing.T) {
	encoder, err := NewLabelEncoder([]string{"Month-to-month", "One year", "Two year"})
	require.NoError(t, err)

	code, err := encoder.Transform("Two year")
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	_, err = encoder.Transform("Three year")
	assert.ErrorIs(t, err, ErrUnknownLabel)

	label, err := encoder.Inverse(1)
	require.NoError(t, err)
	assert.Equal(t, "One year", label)

	_, err = encoder.Inverse(3)
	assert.ErrorIs(t, err, ErrUnknownLabel)
}

func TestLabelEncoderRejectsDuplicates(t *testing.T) {
	_, err := NewLabelEncoder([]string{"No", "Yes", "No"})
	assert.Error(t, err)
}

func TestDecodeLabelEncoders(t *testing.T) {
	encoders, err := DecodeLabelEncoders([]byte(`{"gender": ["Female", "Male"], "Partner": ["No", "Yes"]}`))
	require.NoError(t, err)
	require.Len(t, encoders, 2)
	assert.Equal(t, []string{"Female", "Male"}, encoders["gender"].Classes())
}

func TestStandardScaler(t *testing.T) {
	scaler, err := NewStandardScaler(
		[]string{"tenure", "MonthlyCharges"},
		[]float64{30, 60},
		[]float64{20, 0},
	)
	require.NoError(t, err)

	v, err := scaler.TransformValue("tenure", 50)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)

	// zero scale leaves the centred value untouched
	v, err = scaler.TransformValue("MonthlyCharges", 70)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, v, 1e-9)

	_, err = scaler.TransformValue("TotalCharges", 1)
	assert.Error(t, err)
}

func TestDecodeStandardScalerLengthMismatch(t *testing.T) {
	_, err := DecodeStandardScaler([]byte(`{"features": ["tenure"], "mean": [1, 2], "scale": [1]}`))
	assert.Error(t, err)
}
