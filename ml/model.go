package ml

import "errors"

// ErrNoProbability is returned by PredictProba when the loaded model carries no
// class probabilities.
var ErrNoProbability = errors.New("model does not report probabilities")

// Classifier maps a feature vector to a binary class.
type Classifier interface {
	Predict(features []float64) (int, error)
	NumFeatures() int
}

// WidthInferrer is implemented by tree models. When WidthInferred is true,
// NumFeatures is only a lower bound taken from the split indexes: a tree need
// not split on every column it was trained with.
type WidthInferrer interface {
	WidthInferred() bool
}

// ProbabilityEstimator is implemented by models that report the class-1
// probability.
type ProbabilityEstimator interface {
	PredictProba(features []float64) (float64, error)
}
