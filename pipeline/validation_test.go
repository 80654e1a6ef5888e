package pipeline_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnpredict/pipeline"
	"churnpredict/pipeline/pipelinetest"
)

func TestDefaultValidator(t *testing.T) {
	v := pipeline.DefaultValidator()
	assert.Equal(t, []string{"tenure_range", "MonthlyCharges_range"}, v.Rules())

	record := pipelinetest.StayRecord()
	assert.NoError(t, v.Validate(&record))

	record.Tenure = pipeline.Float(-1)
	err := v.Validate(&record)
	assert.Equal(t, pipeline.KindInvalidInput, pipeline.KindOf(err))
	assert.Equal(t, pipeline.FieldTenure, pipeline.FieldOf(err))

	record.Tenure = pipeline.Float(math.Inf(1))
	assert.Error(t, v.Validate(&record))

	record.Tenure = nil
	assert.NoError(t, v.Validate(&record))
}

func TestRangeRuleIgnoresOtherFields(t *testing.T) {
	rule := pipeline.NewRangeRule(pipeline.FieldContract, 0, 1)
	record := pipelinetest.ChurnRecord()
	assert.NoError(t, rule.Apply(&record))
}

func TestNewWithValidatorTightensBounds(t *testing.T) {
	strict := pipeline.NewValidator(pipeline.NewRangeRule(pipeline.FieldMonthlyCharges, 0, 60))
	p, err := pipeline.NewWithValidator(pipelinetest.Artifacts(pipeline.EncodingLabels), strict)
	require.NoError(t, err)

	_, err = p.Predict(pipelinetest.ChurnRecord())
	var invalidErr *pipeline.InvalidInputError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, pipeline.FieldMonthlyCharges, invalidErr.Field)

	_, err = p.Predict(pipelinetest.StayRecord())
	assert.NoError(t, err)
}
