// Package pipeline runs one leaf photo through preprocessing, inference,
// label resolution and care lookup.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/Brownie44l1/leafcare-api/internal/advisory"
	"github.com/Brownie44l1/leafcare-api/internal/labels"
	"github.com/Brownie44l1/leafcare-api/internal/metrics"
	"github.com/Brownie44l1/leafcare-api/internal/model"
	"github.com/Brownie44l1/leafcare-api/internal/preprocess"
	"go.uber.org/zap"
)

var ErrInvalidInput = errors.New("invalid input tensor")

// ModelProvider hands out the loaded classifier.
type ModelProvider interface {
	Get() (model.Scorer, error)
}

// Result is what the presentation layer renders.
type Result struct {
	Label             labels.ClassLabel  `json:"label"`
	Index             int                `json:"index"`
	Confidence        float32            `json:"confidence"`
	ConfidenceText    string             `json:"confidence_text"`
	Predictions       map[string]float32 `json:"predictions"`
	AdvisoryAvailable bool               `json:"advisory_available"`
	Advisory          *advisory.Record   `json:"advisory,omitempty"`
	Message           string             `json:"message,omitempty"`
}

type LabelInfo struct {
	Index       int               `json:"index"`
	Label       labels.ClassLabel `json:"label"`
	HasAdvisory bool              `json:"has_advisory"`
}

type Service struct {
	models  ModelProvider
	pre     *preprocess.Preprocessor
	table   *advisory.Table
	classes []labels.ClassLabel
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(models ModelProvider, pre *preprocess.Preprocessor, table *advisory.Table, m *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		models:  models,
		pre:     pre,
		table:   table,
		classes: labels.All(),
		metrics: m,
		log:     log,
	}
}

// PredictImage classifies an encoded JPEG or PNG. Decoding happens before
// the model is touched, so unreadable uploads never reach the classifier.
func (s *Service) PredictImage(data []byte) (*Result, error) {
	tensor, err := s.pre.FromBytes(data)
	if err != nil {
		s.metrics.Failure(metrics.StageDecode)
		return nil, err
	}
	return s.predict(tensor.Data)
}

// PredictTensor classifies an already preprocessed NHWC tensor.
func (s *Service) PredictTensor(input []float32) (*Result, error) {
	if len(input) != s.pre.Len() {
		s.metrics.Failure(metrics.StageInput)
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidInput, s.pre.Len(), len(input))
	}
	return s.predict(input)
}

func (s *Service) predict(input []float32) (*Result, error) {
	scorer, err := s.models.Get()
	if err != nil {
		s.metrics.Failure(metrics.StageModelLoad)
		return nil, err
	}

	start := time.Now()
	scores, err := scorer.Score(input)
	s.metrics.ObserveInference(time.Since(start))
	if err != nil {
		s.metrics.Failure(metrics.StageInference)
		return nil, err
	}

	prediction, err := model.Resolve(scores, s.classes)
	if err != nil {
		s.metrics.Failure(metrics.StageResolve)
		return nil, err
	}
	s.metrics.Prediction(string(prediction.Label))

	result := &Result{
		Label:          prediction.Label,
		Index:          prediction.Index,
		Confidence:     prediction.Confidence,
		ConfidenceText: fmt.Sprintf("%.2f", prediction.Confidence),
		Predictions:    prediction.Predictions,
	}

	if rec, ok := s.table.Lookup(prediction.Label); ok {
		result.AdvisoryAvailable = true
		result.Advisory = &rec
	} else {
		result.Message = advisory.Unavailable
	}

	s.log.Debug("prediction complete",
		zap.String("label", string(result.Label)),
		zap.String("confidence", result.ConfidenceText),
		zap.Bool("advisory", result.AdvisoryAvailable),
		zap.Duration("inference", time.Since(start)))

	return result, nil
}

// Labels lists the classes in model order with their advisory coverage.
func (s *Service) Labels() []LabelInfo {
	out := make([]LabelInfo, len(s.classes))
	for i, l := range s.classes {
		_, ok := s.table.Lookup(l)
		out[i] = LabelInfo{Index: i, Label: l, HasAdvisory: ok}
	}
	return out
}

// InputLen is the number of values PredictTensor expects.
func (s *Service) InputLen() int {
	return s.pre.Len()
}

// InputShape is the NHWC shape PredictTensor expects.
func (s *Service) InputShape() []int64 {
	return s.pre.Shape()
}

// Ready reports whether the classifier can be loaded, loading it if needed.
func (s *Service) Ready() error {
	_, err := s.models.Get()
	return err
}
