package model

import (
	"fmt"

	"github.com/Brownie44l1/leafcare-api/internal/labels"
)

// Resolve picks the highest score, ties going to the lowest index, and
// names it through classes.
func Resolve(scores []float32, classes []labels.ClassLabel) (*Prediction, error) {
	if len(scores) == 0 || len(scores) != len(classes) {
		return nil, fmt.Errorf("%w: %d scores, %d labels", ErrLabelMismatch, len(scores), len(classes))
	}

	maxIdx := 0
	maxVal := scores[0]
	predictions := make(map[string]float32, len(scores))

	for i, val := range scores {
		predictions[string(classes[i])] = val
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	return &Prediction{
		Label:       classes[maxIdx],
		Index:       maxIdx,
		Confidence:  maxVal,
		Predictions: predictions,
	}, nil
}
