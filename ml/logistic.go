package ml

import (
	"errors"
	"fmt"
)

// LogisticRegression is a linear model over the selected features.
type LogisticRegression struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

func (lr *LogisticRegression) Predict(features []float64) (int, error) {
	prob, err := lr.PredictProba(features)
	if err != nil {
		return 0, err
	}
	if prob > 0.5 {
		return 1, nil
	}
	return 0, nil
}

func (lr *LogisticRegression) PredictProba(features []float64) (float64, error) {
	if len(features) != len(lr.Coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(lr.Coefficients), len(features))
	}
	z := lr.Intercept
	for i, coef := range lr.Coefficients {
		z += coef * features[i]
	}
	return sigmoid(z), nil
}

func (lr *LogisticRegression) NumFeatures() int {
	return len(lr.Coefficients)
}

func (lr *LogisticRegression) validate() error {
	if len(lr.Coefficients) == 0 {
		return errors.New("logistic regression has no coefficients")
	}
	return nil
}
