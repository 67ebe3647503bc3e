package service

import (
	"alcyxob/fitflow/internal/ai"
	"alcyxob/fitflow/internal/domain"
	"alcyxob/fitflow/internal/repository"
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// --- Error Definitions ---
var (
	// ErrGenerationFailed matches every *GenerationError.
	ErrGenerationFailed = errors.New("plan generation failed")

	ErrGenerationPreconditions = errors.New("an API key, a profile and a fitness goal are required before generating a plan")
	ErrUnparsableResponse      = errors.New("could not find a JSON object in the AI response")
	ErrInvalidPlanShape        = errors.New("the AI response does not describe a valid plan")
)

// GenerationError is the single failure outcome of a generation attempt.
// Reason is one of the ai.Err* classes, ErrUnparsableResponse, ErrInvalidPlanShape,
// or a store failure.
type GenerationError struct {
	Reason error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%v: %v", ErrGenerationFailed, e.Reason)
}

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

func (e *GenerationError) Unwrap() error { return e.Reason }

// --- Service Interface ---
type GenerationService interface {
	// Generate produces, validates and stores a plan for the stored profile.
	// It returns only after the plan is durably written.
	Generate(ctx context.Context) (domain.Plan, error)
	// LastError is the failure of the most recent attempt, nil after a success.
	LastError() error
	// Forget drops the retained failure, after a reset.
	Forget()
}

// --- Service Implementation ---

type generationService struct {
	records      repository.RecordRepository
	collaborator ai.Collaborator
	logger       *zap.Logger

	group singleflight.Group

	mu      sync.Mutex
	lastErr error
}

// NewGenerationService creates a new instance of generationService.
func NewGenerationService(records repository.RecordRepository, collaborator ai.Collaborator, logger *zap.Logger) GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &generationService{records: records, collaborator: collaborator, logger: logger}
}

// Generate shares one in-flight call among concurrent callers. The call is not tied
// to any one caller's context: a tab that disconnects does not abort it.
func (s *generationService) Generate(ctx context.Context) (domain.Plan, error) {
	detached := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do("generate", func() (any, error) {
		plan, err := s.generate(detached)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return plan, err
	})
	if shared {
		s.logger.Debug("joined in-flight plan generation")
	}
	if err != nil {
		return nil, err
	}
	return v.(domain.Plan), nil
}

func (s *generationService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *generationService) Forget() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *generationService) generate(ctx context.Context) (domain.Plan, error) {
	// 1. Another context may have finished already
	if plan, ok := s.records.Plan(ctx); ok {
		return plan, nil
	}

	// 2. Preconditions
	credential, ok := s.records.Credential(ctx)
	if !ok {
		return nil, ErrGenerationPreconditions
	}
	profile, ok := s.records.Profile(ctx)
	if !ok || !profile.HasGoal() {
		return nil, ErrGenerationPreconditions
	}

	// 3. Ask the collaborator
	prompt := BuildPrompt(*profile)
	s.logger.Info("generating plan", zap.String("goal", string(profile.FitnessGoal)))
	text, err := s.collaborator.Complete(ctx, prompt, credential)
	if err != nil {
		s.logger.Warn("AI collaborator failed", zap.Error(err))
		return nil, &GenerationError{Reason: err}
	}

	// 4. Strict decoding and validation
	plan, err := ParsePlanResponse(text)
	if err != nil {
		s.logger.Warn("AI response rejected", zap.Error(err), zap.Int("responseBytes", len(text)))
		return nil, &GenerationError{Reason: err}
	}

	// 5. Durable write before reporting success
	if err := s.records.SetPlan(ctx, plan); err != nil {
		s.logger.Error("failed to store generated plan", zap.Error(err))
		return nil, &GenerationError{Reason: err}
	}
	s.logger.Info("plan generated", zap.Int("days", len(plan)))
	return plan, nil
}
