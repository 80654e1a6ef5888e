package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DecisionTree is a binary tree stored as a flat node array.
type DecisionTree struct {
	nodes       []TreeNode
	numFeatures int
}

// TreeNode is one split or leaf. Features at or below Threshold go left.
type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
	// Value holds the class-1 probability of a decision tree leaf, or the
	// additive margin of a boosted tree leaf.
	Value *float64 `json:"value,omitempty"`
}

type decisionTreeFile struct {
	NumFeatures int        `json:"num_features"`
	Nodes       []TreeNode `json:"nodes"`
}

// NewDecisionTree validates nodes. numFeatures 0 infers the width.
func NewDecisionTree(nodes []TreeNode, numFeatures int) (*DecisionTree, error) {
	dt := &DecisionTree{nodes: nodes, numFeatures: numFeatures}
	if err := dt.validate(); err != nil {
		return nil, err
	}
	return dt, nil
}

// UnmarshalJSON accepts either a bare node array or an object carrying
// num_features alongside the nodes.
func (dt *DecisionTree) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var nodes []TreeNode
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return err
		}
		dt.nodes = nodes
		dt.numFeatures = 0
		return nil
	}
	var file decisionTreeFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return err
	}
	dt.nodes = file.Nodes
	dt.numFeatures = file.NumFeatures
	return nil
}

func (dt *DecisionTree) MarshalJSON() ([]byte, error) {
	return json.Marshal(decisionTreeFile{NumFeatures: dt.numFeatures, Nodes: dt.nodes})
}

func (dt *DecisionTree) Predict(features []float64) (int, error) {
	leaf, err := walkTree(dt.nodes, features)
	if err != nil {
		return 0, err
	}
	return leaf.ClassLabel, nil
}

// PredictProba returns the leaf probability, or ErrNoProbability.
func (dt *DecisionTree) PredictProba(features []float64) (float64, error) {
	leaf, err := walkTree(dt.nodes, features)
	if err != nil {
		return 0, err
	}
	if leaf.Value == nil {
		return 0, ErrNoProbability
	}
	return *leaf.Value, nil
}

// NumFeatures is the declared input width, or the highest split index plus
// one when the tree was loaded without num_features.
func (dt *DecisionTree) NumFeatures() int {
	if dt.numFeatures > 0 {
		return dt.numFeatures
	}
	return maxFeatureIndex(dt.nodes) + 1
}

// WidthInferred reports that no num_features was given.
func (dt *DecisionTree) WidthInferred() bool {
	return dt.numFeatures <= 0
}

func (dt *DecisionTree) validate() error {
	if err := validateTree(dt.nodes, dt.numFeatures); err != nil {
		return err
	}
	for i, node := range dt.nodes {
		if !node.IsLeaf {
			continue
		}
		if node.ClassLabel != 0 && node.ClassLabel != 1 {
			return fmt.Errorf("node %d: class label %d is not binary", i, node.ClassLabel)
		}
		if node.Value != nil && (*node.Value < 0 || *node.Value > 1) {
			return fmt.Errorf("node %d: leaf probability %f outside [0,1]", i, *node.Value)
		}
	}
	return nil
}

func walkTree(nodes []TreeNode, features []float64) (TreeNode, error) {
	if len(nodes) == 0 {
		return TreeNode{}, errors.New("model not trained")
	}
	idx := 0
	for steps := 0; steps <= len(nodes); steps++ {
		node := nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
	return TreeNode{}, errors.New("tree contains a cycle")
}

func validateTree(nodes []TreeNode, numFeatures int) error {
	if len(nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range nodes {
		if node.IsLeaf {
			continue
		}
		if node.FeatureIdx < 0 {
			return fmt.Errorf("node %d: negative feature index", i)
		}
		if numFeatures > 0 && node.FeatureIdx >= numFeatures {
			return fmt.Errorf("node %d: feature index %d exceeds %d features", i, node.FeatureIdx, numFeatures)
		}
		if node.LeftChild <= i || node.LeftChild >= len(nodes) {
			return fmt.Errorf("node %d: invalid left child %d", i, node.LeftChild)
		}
		if node.RightChild <= i || node.RightChild >= len(nodes) {
			return fmt.Errorf("node %d: invalid right child %d", i, node.RightChild)
		}
	}
	return nil
}

func maxFeatureIndex(nodes []TreeNode) int {
	maxIdx := -1
	for _, node := range nodes {
		if !node.IsLeaf && node.FeatureIdx > maxIdx {
			maxIdx = node.FeatureIdx
		}
	}
	return maxIdx
}
