package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	ModelDecisionTree       = "decision_tree"
	ModelGradientBoosting   = "gradient_boosting"
	ModelLogisticRegression = "logistic_regression"
)

// LoadModel reads and decodes the model file at path.
func LoadModel(modelType, path string) (Classifier, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeModel(modelType, payload)
}

// DecodeModel decodes and validates a JSON model of the given type.
func DecodeModel(modelType string, payload []byte) (Classifier, error) {
	switch modelType {
	case ModelDecisionTree:
		model := &DecisionTree{}
		if err := json.Unmarshal(payload, model); err != nil {
			return nil, fmt.Errorf("decode decision tree: %w", err)
		}
		if err := model.validate(); err != nil {
			return nil, err
		}
		return model, nil
	case ModelGradientBoosting:
		model := &BoostedTrees{}
		if err := json.Unmarshal(payload, model); err != nil {
			return nil, fmt.Errorf("decode gradient boosting: %w", err)
		}
		if err := model.validate(); err != nil {
			return nil, err
		}
		return model, nil
	case ModelLogisticRegression:
		model := &LogisticRegression{}
		if err := json.Unmarshal(payload, model); err != nil {
			return nil, fmt.Errorf("decode logistic regression: %w", err)
		}
		if err := model.validate(); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}
