package model

import (
	"errors"

	"github.com/Brownie44l1/leafcare-api/internal/labels"
)

var (
	ErrModelLoad     = errors.New("model could not be loaded")
	ErrLabelMismatch = errors.New("score vector does not match label set")
	ErrShapeMismatch = errors.New("tensor shape does not match model")
)

// Options locate and describe the classifier artifact.
type Options struct {
	Path        string
	LibraryPath string
	// InputName and OutputName override the names discovered in the model.
	InputName      string
	OutputName     string
	ImageSize      int
	Classes        int
	IntraOpThreads int
}

// Scorer runs one forward pass over a preprocessed NHWC tensor.
type Scorer interface {
	Score(input []float32) ([]float32, error)
	Close() error
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

// Prediction is the top class of one forward pass.
type Prediction struct {
	Label       labels.ClassLabel  `json:"label"`
	Index       int                `json:"index"`
	Confidence  float32            `json:"confidence"`
	Predictions map[string]float32 `json:"predictions"`
}
