// Package service wraps the inference pipeline with the side effects of a
// running deployment: result caching, retention tiers, audit storage, event
// publishing, live broadcast and metrics.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"churnpredict/monitoring"
	"churnpredict/pipeline"
	"churnpredict/retention"
)

// ErrNoStore is returned by history queries when no audit store is configured.
var ErrNoStore = errors.New("prediction history is not enabled")

// AuditStore persists assessments.
type AuditStore interface {
	SavePrediction(ctx context.Context, a retention.Assessment) error
	RecentPredictions(ctx context.Context, limit int) ([]retention.Assessment, error)
}

// EventPublisher announces assessments to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, assessments ...retention.Assessment) error
}

// Broadcaster pushes assessments to live clients.
type Broadcaster interface {
	BroadcastAssessment(assessment any)
}

// Options configures a Service. Every collaborator is optional.
type Options struct {
	// CacheSize bounds the result cache; zero disables caching.
	CacheSize int
	// Parallelism bounds PredictBatch; zero means GOMAXPROCS.
	Parallelism int
	Policy      retention.Policy

	Store       AuditStore
	Publisher   EventPublisher
	Broadcaster Broadcaster
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger

	Now func() time.Time
}

// Service scores customers and records the outcome.
type Service struct {
	pipeline *pipeline.Pipeline
	cache    *lru.Cache[string, pipeline.PredictionResult]
	policy   atomic.Pointer[retention.Policy]

	parallelism int
	store       AuditStore
	publisher   EventPublisher
	broadcaster Broadcaster
	metrics     *monitoring.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// New validates the policy and builds the cache.
func New(p *pipeline.Pipeline, opts Options) (*Service, error) {
	if p == nil {
		return nil, errors.New("service requires a pipeline")
	}
	policy := opts.Policy
	if policy == (retention.Policy{}) {
		policy = retention.DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		pipeline:    p,
		parallelism: opts.Parallelism,
		store:       opts.Store,
		publisher:   opts.Publisher,
		broadcaster: opts.Broadcaster,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if s.parallelism <= 0 {
		s.parallelism = runtime.GOMAXPROCS(0)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("service")
	if s.now == nil {
		s.now = time.Now
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, pipeline.PredictionResult](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create result cache: %w", err)
		}
		s.cache = cache
	}
	s.policy.Store(&policy)
	return s, nil
}

func (s *Service) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Policy returns the active retention policy.
func (s *Service) Policy() retention.Policy {
	return *s.policy.Load()
}

// SetPolicy swaps the retention thresholds used by subsequent predictions.
func (s *Service) SetPolicy(policy retention.Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	s.policy.Store(&policy)
	s.logger.Info("retention policy updated",
		zap.Float64("high", policy.HighThreshold),
		zap.Float64("medium", policy.MediumThreshold))
	return nil
}

// Predict runs one record through the pipeline and records the outcome.
// Audit and publish failures are logged and do not fail the prediction.
func (s *Service) Predict(ctx context.Context, record pipeline.CustomerRecord) (retention.Assessment, error) {
	result, cached, err := s.predict(record)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveError(string(pipeline.KindOf(err)))
		}
		return retention.Assessment{}, err
	}

	policy := s.Policy()
	tier := policy.Tier(result)
	assessment := retention.Assessment{
		ID:           uuid.NewString(),
		CustomerID:   record.CustomerID,
		Prediction:   result.Label,
		Probability:  result.Probability,
		Tier:         tier,
		Advice:       retention.Advice(tier, s.pipeline.Labelled(record)),
		Imputed:      result.Imputed,
		ModelVersion: s.pipeline.Artifacts().Version(),
		Cached:       cached,
		CreatedAt:    s.now().UTC(),
	}
	s.record(ctx, assessment)
	return assessment, nil
}

func (s *Service) predict(record pipeline.CustomerRecord) (pipeline.PredictionResult, bool, error) {
	var key string
	if s.cache != nil {
		key = record.Key()
		if result, ok := s.cache.Get(key); ok {
			if s.metrics != nil {
				s.metrics.CacheHit()
			}
			return result, true, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMiss()
		}
	}

	start := time.Now()
	result, err := s.pipeline.Predict(record)
	if err != nil {
		return pipeline.PredictionResult{}, false, err
	}
	if s.cache != nil {
		s.cache.Add(key, result)
	}
	if s.metrics != nil {
		s.metrics.ObservePrediction(string(result.Label), string(s.Policy().Tier(result)), result.Imputed, time.Since(start))
	}
	return result, false, nil
}

func (s *Service) record(ctx context.Context, a retention.Assessment) {
	if s.store != nil {
		if err := s.store.SavePrediction(ctx, a); err != nil {
			s.logger.Warn("audit save failed", zap.String("assessment", a.ID), zap.Error(err))
			if s.metrics != nil {
				s.metrics.AuditFailed()
			}
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, a); err != nil {
			s.logger.Warn("event publish failed", zap.String("assessment", a.ID), zap.Error(err))
			if s.metrics != nil {
				s.metrics.PublishFailed()
			}
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastAssessment(a)
	}
}

// RecentPredictions reads the audit log, newest first.
func (s *Service) RecentPredictions(ctx context.Context, limit int) ([]retention.Assessment, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.RecentPredictions(ctx, limit)
}

// ModelInfo describes the loaded artifacts.
type ModelInfo struct {
	Version             string              `json:"version"`
	ModelType           string              `json:"model_type"`
	RawEncoding         string              `json:"raw_encoding"`
	Features            []string            `json:"features"`
	SupportsProbability bool                `json:"supports_probability"`
	Classes             map[string][]string `json:"classes"`
	Medians             map[string]float64  `json:"medians,omitempty"`
	Policy              retention.Policy    `json:"retention_policy"`
}

// ModelInfo describes the loaded artifacts.
func (s *Service) ModelInfo() ModelInfo {
	artifacts := s.pipeline.Artifacts()
	info := ModelInfo{
		Version:             artifacts.Version(),
		ModelType:           artifacts.ModelType(),
		RawEncoding:         string(artifacts.Encoding()),
		Features:            artifacts.Features(),
		SupportsProbability: artifacts.SupportsProbability(),
		Classes:             make(map[string][]string),
		Policy:              s.Policy(),
	}
	for _, field := range artifacts.EncodedFields() {
		encoder, _ := artifacts.Encoder(field)
		info.Classes[field] = encoder.Classes()
	}
	for _, field := range pipeline.NumericFields() {
		if median, ok := artifacts.Median(field); ok {
			if info.Medians == nil {
				info.Medians = make(map[string]float64)
			}
			info.Medians[field] = median
		}
	}
	return info
}
