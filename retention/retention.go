// Package retention turns churn predictions into risk tiers and retention
// advice for account managers.
package retention

import (
	"fmt"
	"time"

	"churnpredict/pipeline"
)

// Tier is the retention risk level.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Messages shown on the HTML result page.
const (
	ChurnSummary = "Customer is likely to churn"
	StaySummary  = "Customer is not likely to churn"
)

// Policy holds the probability cut-offs between tiers.
type Policy struct {
	HighThreshold   float64 `yaml:"high_threshold" json:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold" json:"medium_threshold"`
}

// DefaultPolicy puts high at 0.7 and medium at 0.4.
func DefaultPolicy() Policy {
	return Policy{HighThreshold: 0.7, MediumThreshold: 0.4}
}

// Validate requires 0 <= medium <= high <= 1.
func (p Policy) Validate() error {
	if p.MediumThreshold < 0 || p.HighThreshold > 1 || p.MediumThreshold > p.HighThreshold {
		return fmt.Errorf("retention thresholds must satisfy 0 <= medium (%g) <= high (%g) <= 1",
			p.MediumThreshold, p.HighThreshold)
	}
	return nil
}

// Tier buckets a result by probability. Without a probability the label
// decides: Churn is high risk, Stay is low.
func (p Policy) Tier(result pipeline.PredictionResult) Tier {
	if result.Probability == nil {
		if result.Churn() {
			return TierHigh
		}
		return TierLow
	}
	switch prob := *result.Probability; {
	case prob >= p.HighThreshold:
		return TierHigh
	case prob >= p.MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Summary is the one-line verdict for a label.
func Summary(label pipeline.Label) string {
	if label == pipeline.LabelChurn {
		return ChurnSummary
	}
	return StaySummary
}

// Assessment is a prediction enriched for people and downstream systems.
type Assessment struct {
	ID           string         `json:"id"`
	CustomerID   string         `json:"customer_id,omitempty"`
	Prediction   pipeline.Label `json:"prediction"`
	Probability  *float64       `json:"probability,omitempty"`
	Tier         Tier           `json:"tier"`
	Advice       []string       `json:"advice"`
	Imputed      []string       `json:"imputed,omitempty"`
	ModelVersion string         `json:"model_version,omitempty"`
	Cached       bool           `json:"cached"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (a Assessment) Summary() string {
	return Summary(a.Prediction)
}
