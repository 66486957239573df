package aimodel

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/audit"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
)

type Service struct {
	repo   Repository
	audit  audit.Recorder
	logger zerolog.Logger
}

func NewService(repo Repository, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, audit: rec, logger: logger.With().Str("component", "aimodel").Logger()}
}

func (s *Service) List(ctx context.Context) ([]*Model, error) {
	models, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if models == nil {
		models = []*Model{}
	}
	return models, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Model, error) {
	m := &Model{
		Name:     strings.TrimSpace(req.Name),
		Version:  strings.TrimSpace(req.Version),
		Status:   req.Status,
		Accuracy: req.Accuracy,
	}
	if m.Name == "" || m.Version == "" {
		return nil, apperr.Invalid("name", "name and version are required")
	}
	if m.Status == "" {
		m.Status = StatusActive
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionCreateAIModel,
		Resource:   audit.ResourceAIModel,
		ResourceID: m.ID.String(),
		Details:    map[string]any{"name": m.Name, "version": m.Version},
		Severity:   audit.SeverityInfo,
	})
	return m, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Model, error) {
	if req.Status == nil && req.Accuracy == nil {
		return nil, apperr.Invalid("", "no updatable fields supplied")
	}
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != nil {
		m.Status = *req.Status
	}
	if req.Accuracy != nil {
		m.Accuracy = req.Accuracy
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionUpdateAIModel,
		Resource:   audit.ResourceAIModel,
		ResourceID: m.ID.String(),
		Details:    map[string]any{"status": m.Status, "accuracy": m.Accuracy},
		Severity:   audit.SeverityHigh,
	})
	return m, nil
}

// Ensure registers a model if missing. Used by the seed command.
func (s *Service) Ensure(ctx context.Context, name, version string) (bool, error) {
	return s.repo.Ensure(ctx, &Model{Name: name, Version: version, Status: StatusActive})
}

// RecordPrediction updates usage counters. Failures are logged only.
func (s *Service) RecordPrediction(ctx context.Context, name, version string, elapsedMillis int) {
	if err := s.repo.RecordPrediction(ctx, name, version, elapsedMillis); err != nil {
		s.logger.Warn().Err(err).Str("model", name).Str("version", version).Msg("update model usage")
	}
}
