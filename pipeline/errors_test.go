package pipeline_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"churnpredict/pipeline"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err    error
		kind   pipeline.ErrorKind
		field  string
		client bool
	}{
		{err: nil, kind: ""},
		{err: &pipeline.InputParseError{Field: "TotalCharges", Raw: " "}, kind: pipeline.KindInputParse, field: "TotalCharges", client: true},
		{err: &pipeline.UnknownCategoryError{Field: "Contract", Value: "Weekly"}, kind: pipeline.KindUnknownCategory, field: "Contract", client: true},
		{err: fmt.Errorf("predict: %w", &pipeline.MissingFeatureError{Feature: "tenure"}), kind: pipeline.KindMissingFeature, field: "tenure", client: true},
		{err: &pipeline.InvalidInputError{Reason: "bad"}, kind: pipeline.KindInvalidInput, client: true},
		{err: &pipeline.ArtifactLoadError{Artifact: "model", Err: errors.New("gone")}, kind: pipeline.KindArtifactLoad},
		{err: errors.New("boom"), kind: pipeline.KindInternal},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.kind, pipeline.KindOf(tt.err))
			assert.Equal(t, tt.field, pipeline.FieldOf(tt.err))
			assert.Equal(t, tt.client, pipeline.KindOf(tt.err).IsClientError())
		})
	}
}

func TestErrorMessagesNameTheField(t *testing.T) {
	assert.Contains(t, (&pipeline.UnknownCategoryError{Field: "Contract", Value: "Weekly"}).Error(), "Contract")
	assert.Contains(t, (&pipeline.MissingFeatureError{Feature: "tenure"}).Error(), "tenure")
	assert.Equal(t, "invalid input: empty", (&pipeline.InvalidInputError{Reason: "empty"}).Error())
	assert.Contains(t, (&pipeline.ArtifactLoadError{Artifact: "scaler", Path: "/a/scaler.json", Err: errors.New("x")}).Error(), "/a/scaler.json")
}
