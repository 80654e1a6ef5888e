package pipeline

import "fmt"

// Label is the churn decision.
type Label string

const (
	LabelStay  Label = "Stay"
	LabelChurn Label = "Churn"
)

var churnLabels = [2]Label{LabelStay, LabelChurn}

// LabelFor maps a binary classifier output to its label.
func LabelFor(class int) (Label, error) {
	if class < 0 || class >= len(churnLabels) {
		return "", fmt.Errorf("classifier returned non-binary class %d", class)
	}
	return churnLabels[class], nil
}

// PredictionResult is the outcome of one pipeline run. Probability is nil
// when the model does not report one.
type PredictionResult struct {
	Label       Label
	Probability *float64
	// Imputed names numeric fields replaced by their training median.
	Imputed []string
}

func (r PredictionResult) Churn() bool {
	return r.Label == LabelChurn
}
