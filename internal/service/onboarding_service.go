package service

import (
	"alcyxob/fitflow/internal/domain"
	"alcyxob/fitflow/internal/flow"
	"alcyxob/fitflow/internal/repository"
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a record the caller asked for is absent.
var ErrNotFound = errors.New("record not found")

// BMIResult is a BMI value with its category.
type BMIResult struct {
	Value    float64            `json:"value"`
	Category domain.BMICategory `json:"category"`
}

// ComputeBMI validates the biometrics and returns the rounded BMI.
func ComputeBMI(height, weight float64) (BMIResult, error) {
	if err := domain.ValidateBiometrics(height, weight); err != nil {
		return BMIResult{}, err
	}
	bmi := domain.CalculateBMI(height, weight)
	return BMIResult{Value: bmi, Category: domain.CategorizeBMI(bmi)}, nil
}

// Status is the onboarding state as derived from the store right now.
type Status struct {
	Stage           flow.Stage      `json:"stage"`
	HasCredential   bool            `json:"hasCredential"`
	Profile         *domain.Profile `json:"profile,omitempty"`
	BMI             *BMIResult      `json:"bmi,omitempty"`
	HasPlan         bool            `json:"hasPlan"`
	HasProgress     bool            `json:"hasProgress"`
	GenerationError string          `json:"generationError,omitempty"`
}

// --- Service Interface ---
type OnboardingService interface {
	Status(ctx context.Context) Status
	SaveCredential(ctx context.Context, credential string) (flow.Stage, error)
	SaveProfile(ctx context.Context, name string, height, weight float64) (*domain.Profile, flow.Stage, error)
	SelectGoal(ctx context.Context, goal domain.Goal) (*domain.Profile, flow.Stage, error)
	GeneratePlan(ctx context.Context) (domain.Plan, flow.Stage, error)
	Plan(ctx context.Context) (domain.Plan, error)
	StartPlan(ctx context.Context) (*domain.Progress, flow.Stage, error)
	Reset(ctx context.Context) error
}

// --- Service Implementation ---

type onboardingService struct {
	records    repository.RecordRepository
	generation GenerationService
	logger     *zap.Logger
	now        func() time.Time
}

// NewOnboardingService creates a new instance of onboardingService.
func NewOnboardingService(records repository.RecordRepository, generation GenerationService, logger *zap.Logger) OnboardingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &onboardingService{records: records, generation: generation, logger: logger, now: time.Now}
}

// FactsFromSnapshot reduces a store snapshot to what stage derivation reads.
func FactsFromSnapshot(snap repository.Snapshot) flow.Facts {
	return flow.Facts{
		HasCredential: snap.HasCredential,
		HasProfile:    snap.Profile != nil,
		HasGoal:       snap.Profile.HasGoal(),
		HasPlan:       snap.Plan != nil,
		HasProgress:   snap.Progress != nil,
	}
}

// machine re-derives the stage; the store is the only ground truth across contexts.
func (s *onboardingService) machine(ctx context.Context) (*flow.Machine, repository.Snapshot) {
	snap := s.records.Snapshot(ctx)
	return flow.FromFacts(FactsFromSnapshot(snap)), snap
}

// begin checks that ev completes the current stage before any input is looked at.
func (s *onboardingService) begin(ctx context.Context, ev flow.Event) (*flow.Machine, repository.Snapshot, error) {
	m, snap := s.machine(ctx)
	if !m.Can(ev) {
		_, err := m.Fire(ev)
		return m, snap, err
	}
	return m, snap, nil
}

func (s *onboardingService) Status(ctx context.Context) Status {
	m, snap := s.machine(ctx)
	st := Status{
		Stage:         m.Stage(),
		HasCredential: snap.HasCredential,
		Profile:       snap.Profile,
		HasPlan:       snap.Plan != nil,
		HasProgress:   snap.Progress != nil,
	}
	if snap.Profile != nil {
		bmi := domain.CalculateBMI(snap.Profile.Height, snap.Profile.Weight)
		st.BMI = &BMIResult{Value: bmi, Category: domain.CategorizeBMI(bmi)}
	}
	if st.Stage == flow.Generating {
		if err := s.generation.LastError(); err != nil {
			st.GenerationError = err.Error()
		}
	}
	return st
}

func (s *onboardingService) SaveCredential(ctx context.Context, credential string) (flow.Stage, error) {
	m, _, err := s.begin(ctx, flow.CredentialSaved)
	if err != nil {
		return m.Stage(), err
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return m.Stage(), &domain.ValidationError{Field: "apiKey", Message: "please enter your API key"}
	}
	if err := s.records.SetCredential(ctx, credential); err != nil {
		return m.Stage(), err
	}
	s.logger.Info("credential saved")
	return m.Fire(flow.CredentialSaved)
}

func (s *onboardingService) SaveProfile(ctx context.Context, name string, height, weight float64) (*domain.Profile, flow.Stage, error) {
	m, _, err := s.begin(ctx, flow.ProfileSaved)
	if err != nil {
		return nil, m.Stage(), err
	}
	profile, err := domain.NewProfile(name, height, weight, s.now())
	if err != nil {
		return nil, m.Stage(), err
	}
	if err := s.records.SetProfile(ctx, *profile); err != nil {
		return nil, m.Stage(), err
	}
	s.logger.Info("profile saved")
	stage, err := m.Fire(flow.ProfileSaved)
	return profile, stage, err
}

func (s *onboardingService) SelectGoal(ctx context.Context, goal domain.Goal) (*domain.Profile, flow.Stage, error) {
	m, snap, err := s.begin(ctx, flow.GoalSelected)
	if err != nil {
		return nil, m.Stage(), err
	}
	if goal == "" {
		return nil, m.Stage(), &domain.ValidationError{Field: "fitnessGoal", Message: "please select a fitness goal"}
	}
	updated, err := snap.Profile.WithGoal(goal)
	if err != nil {
		return nil, m.Stage(), err
	}
	if err := s.records.SetProfile(ctx, updated); err != nil {
		return nil, m.Stage(), err
	}
	s.logger.Info("fitness goal selected", zap.String("goal", string(goal)))
	stage, err := m.Fire(flow.GoalSelected)
	return &updated, stage, err
}

func (s *onboardingService) GeneratePlan(ctx context.Context) (domain.Plan, flow.Stage, error) {
	m, _, err := s.begin(ctx, flow.PlanGenerated)
	if err != nil {
		return nil, m.Stage(), err
	}
	plan, err := s.generation.Generate(ctx)
	if err != nil {
		return nil, m.Stage(), err
	}
	stage, err := m.Fire(flow.PlanGenerated)
	return plan, stage, err
}

func (s *onboardingService) Plan(ctx context.Context) (domain.Plan, error) {
	plan, ok := s.records.Plan(ctx)
	if !ok {
		return nil, ErrNotFound
	}
	return plan, nil
}

func (s *onboardingService) StartPlan(ctx context.Context) (*domain.Progress, flow.Stage, error) {
	m, snap, err := s.begin(ctx, flow.PlanStarted)
	if err != nil {
		return nil, m.Stage(), err
	}
	progress := domain.StartProgress(*snap.Profile, snap.Plan, s.now())
	if err := s.records.SetProgress(ctx, progress); err != nil {
		return nil, m.Stage(), err
	}
	s.logger.Info("plan started", zap.Time("startDate", progress.StartDate))
	stage, err := m.Fire(flow.PlanStarted)
	return &progress, stage, err
}

// Reset clears every record. It is legal from any stage.
func (s *onboardingService) Reset(ctx context.Context) error {
	if err := s.records.ClearAll(ctx); err != nil {
		return err
	}
	s.generation.Forget()
	s.logger.Info("onboarding reset")
	return nil
}
