package ml

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prob(v float64) *float64 { return &v }

func twoLeafTree(t *testing.T) *DecisionTree {
	t.Helper()
	model, err := NewDecisionTree([]TreeNode{
		{FeatureIdx: 1, Threshold: 0.5, LeftChild: 1, RightChild: 2},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 1, IsLeaf: true, Value: prob(0.8)},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 0, IsLeaf: true, Value: prob(0.2)},
	}, 2)
	require.NoError(t, err)
	return model
}

func TestDecisionTreePredict(t *testing.T) {
	model := twoLeafTree(t)

	label, err := model.Predict([]float64{9, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	p, err := model.PredictProba([]float64{9, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, p, 1e-9)

	label, err = model.Predict([]float64{9, 0.51})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
	assert.Equal(t, 2, model.NumFeatures())
}

func TestDecisionTreeFeatureOutOfRange(t *testing.T) {
	model := twoLeafTree(t)
	_, err := model.Predict([]float64{1})
	assert.Error(t, err)
}

func TestDecisionTreeWithoutProbabilities(t *testing.T) {
	payload := `[
		{"feature_idx": 0, "threshold": 1, "left_child": 1, "right_child": 2, "class_label": 0, "is_leaf": false},
		{"feature_idx": -1, "threshold": 0, "left_child": -1, "right_child": -1, "class_label": 0, "is_leaf": true},
		{"feature_idx": -1, "threshold": 0, "left_child": -1, "right_child": -1, "class_label": 1, "is_leaf": true}
	]`
	model, err := DecodeModel(ModelDecisionTree, []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, model.NumFeatures())
	assert.True(t, model.(WidthInferrer).WidthInferred())

	label, err := model.Predict([]float64{3})
	require.NoError(t, err)
	assert.Equal(t, 1, label)

	_, err = model.(ProbabilityEstimator).PredictProba([]float64{3})
	assert.ErrorIs(t, err, ErrNoProbability)
}

func TestDecisionTreeRoundTrip(t *testing.T) {
	model := twoLeafTree(t)
	payload, err := json.Marshal(model)
	require.NoError(t, err)

	decoded, err := DecodeModel(ModelDecisionTree, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.NumFeatures())
	assert.False(t, decoded.(WidthInferrer).WidthInferred())
}

func TestDecisionTreeValidation(t *testing.T) {
	tests := []struct {
		name  string
		nodes []TreeNode
	}{
		{name: "empty", nodes: nil},
		{
			name: "child points backwards",
			nodes: []TreeNode{
				{FeatureIdx: 0, LeftChild: 0, RightChild: 1},
				{IsLeaf: true},
			},
		},
		{
			name: "child out of range",
			nodes: []TreeNode{
				{FeatureIdx: 0, LeftChild: 1, RightChild: 7},
				{IsLeaf: true},
			},
		},
		{
			name: "probability above one",
			nodes: []TreeNode{
				{IsLeaf: true, ClassLabel: 1, Value: prob(1.5)},
			},
		},
		{
			name: "leaf class not binary",
			nodes: []TreeNode{
				{FeatureIdx: 0, LeftChild: 1, RightChild: 2},
				{IsLeaf: true, ClassLabel: 2},
				{IsLeaf: true},
			},
		},
		{
			name: "feature beyond declared width",
			nodes: []TreeNode{
				{FeatureIdx: 4, LeftChild: 1, RightChild: 2},
				{IsLeaf: true},
				{IsLeaf: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecisionTree(tt.nodes, 2)
			assert.Error(t, err)
		})
	}
}
