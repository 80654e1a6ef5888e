package ml

import (
	"errors"
	"fmt"
	"math"
)

// BoostedTrees is a binary-logistic tree ensemble: the class-1 probability
// is the sigmoid of the base margin plus the sum of every tree's leaf value.
type BoostedTrees struct {
	BaseMargin     float64      `json:"base_margin"`
	NumFeatureCols int          `json:"num_features"`
	Trees          [][]TreeNode `json:"trees"`
}

// Predict returns 1 when the class-1 probability exceeds 0.5.
func (bt *BoostedTrees) Predict(features []float64) (int, error) {
	prob, err := bt.PredictProba(features)
	if err != nil {
		return 0, err
	}
	if prob > 0.5 {
		return 1, nil
	}
	return 0, nil
}

func (bt *BoostedTrees) PredictProba(features []float64) (float64, error) {
	margin, err := bt.Margin(features)
	if err != nil {
		return 0, err
	}
	return sigmoid(margin), nil
}

// Margin is the raw log-odds before the sigmoid.
func (bt *BoostedTrees) Margin(features []float64) (float64, error) {
	margin := bt.BaseMargin
	for i, tree := range bt.Trees {
		leaf, err := walkTree(tree, features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		if leaf.Value == nil {
			return 0, fmt.Errorf("tree %d: leaf without value", i)
		}
		margin += *leaf.Value
	}
	return margin, nil
}

// NumFeatures is num_features when set, otherwise the highest split index
// plus one.
func (bt *BoostedTrees) NumFeatures() int {
	if bt.NumFeatureCols > 0 {
		return bt.NumFeatureCols
	}
	maxIdx := -1
	for _, tree := range bt.Trees {
		if idx := maxFeatureIndex(tree); idx > maxIdx {
			maxIdx = idx
		}
	}
	return maxIdx + 1
}

// WidthInferred reports that no num_features was given.
func (bt *BoostedTrees) WidthInferred() bool {
	return bt.NumFeatureCols <= 0
}

func (bt *BoostedTrees) validate() error {
	if len(bt.Trees) == 0 {
		return errors.New("ensemble has no trees")
	}
	for i, tree := range bt.Trees {
		if err := validateTree(tree, bt.NumFeatureCols); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		for j, node := range tree {
			if node.IsLeaf && node.Value == nil {
				return fmt.Errorf("tree %d node %d: leaf without value", i, j)
			}
		}
	}
	return nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
