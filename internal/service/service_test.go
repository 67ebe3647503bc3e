package service

import (
	"alcyxob/fitflow/internal/ai"
	"alcyxob/fitflow/internal/domain"
	"alcyxob/fitflow/internal/flow"
	"alcyxob/fitflow/internal/progress"
	"alcyxob/fitflow/internal/repository"
	"alcyxob/fitflow/internal/storage"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squatReply = `Here is your plan: {"routine":[{"day":1,"dayName":"Monday","focus":"Legs","exercises":[{"name":"Squat","sets":4,"reps":"8-10","rest":"90s"}]}]} Enjoy!`

type fakeCollaborator struct {
	reply string
	err   error
	calls atomic.Int32
	gate  chan struct{} // when set, Complete waits for it to close

	mu         sync.Mutex
	prompt     string
	credential string
}

func (f *fakeCollaborator) Complete(ctx context.Context, prompt, credential string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompt, f.credential = prompt, credential
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	return f.reply, f.err
}

type fixture struct {
	backend    *storage.MemoryBackend
	store      *repository.RecordStore
	collab     *fakeCollaborator
	generation GenerationService
	onboarding OnboardingService
	tracking   *trackingService
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: storage.NewMemoryBackend(),
		collab:  &fakeCollaborator{reply: squatReply},
		now:     time.Date(2026, 4, 6, 8, 0, 0, 0, time.UTC),
	}
	f.store = repository.NewRecordStore(f.backend, nil, nil, nil)
	f.generation = NewGenerationService(f.store, f.collab, nil)
	f.onboarding = NewOnboardingService(f.store, f.generation, nil)
	f.onboarding.(*onboardingService).now = func() time.Time { return f.now }
	f.tracking = NewTrackingService(f.store, time.UTC, nil).(*trackingService)
	f.tracking.now = func() time.Time { return f.now }
	return f
}

// toGenerating walks the flow up to the Generating stage.
func (f *fixture) toGenerating(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.onboarding.SaveCredential(ctx, "  AIzaSy-key  ")
	require.NoError(t, err)
	_, _, err = f.onboarding.SaveProfile(ctx, "Ada", 170, 62)
	require.NoError(t, err)
	_, stage, err := f.onboarding.SelectGoal(ctx, domain.GoalRecomposition)
	require.NoError(t, err)
	require.Equal(t, flow.Generating, stage)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose around", `Sure! {"a":{"b":2}} Have fun {"c":3}`, `{"a":{"b":2}}`, true},
		{"braces in strings", `{"note":"use } and { freely","x":1}`, `{"note":"use } and { freely","x":1}`, true},
		{"escaped quote", `{"note":"say \"}\" now"}`, `{"note":"say \"}\" now"}`, true},
		{"markdown fence", "```json\n{\"routine\":[]}\n```", `{"routine":[]}`, true},
		{"unclosed then closed", `{ oops {"a":1}`, `{"a":1}`, true},
		{"no braces", `I cannot help with that.`, "", false},
		{"never closes", `{"a":`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePlanResponse(t *testing.T) {
	plan, err := ParsePlanResponse(squatReply)
	require.NoError(t, err)
	want := domain.Plan{{Day: 1, DayName: "Monday", Focus: "Legs", Exercises: []domain.Exercise{
		{Name: "Squat", Sets: 4, Reps: "8-10", Rest: "90s"},
	}}}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("parsed plan (-want +got):\n%s", diff)
	}

	plan, err = ParsePlanResponse(`{"routine":[{"day":2,"exercises":[{"name":"Plank","sets":3,"reps":30,"rest":60,"extra":"ignored"}]}],"summary":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, "30", plan[0].Exercises[0].Reps)
	assert.Equal(t, "60", plan[0].Exercises[0].Rest)

	_, err = ParsePlanResponse("no json here")
	assert.ErrorIs(t, err, ErrUnparsableResponse)

	_, err = ParsePlanResponse(`{"routine": nope}`)
	assert.ErrorIs(t, err, ErrUnparsableResponse)

	for _, bad := range []string{
		`{"routine":[]}`,
		`{"other":true}`,
		`{"routine":[{"day":1,"exercises":[]}]}`,
		`{"routine":[{"day":9,"exercises":[{"name":"Row","sets":3}]}]}`,
		`{"routine":[{"day":1,"exercises":[{"name":"","sets":3}]}]}`,
		`{"routine":[{"day":1,"exercises":[{"name":"Row","sets":"three"}]}]}`,
		`{"routine":"seven days"}`,
	} {
		_, err := ParsePlanResponse(bad)
		assert.ErrorIs(t, err, ErrInvalidPlanShape, bad)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := domain.Profile{Name: "Ada", Height: 170.5, Weight: 62, FitnessGoal: domain.GoalRecomposition}
	prompt := BuildPrompt(p)
	assert.Contains(t, prompt, "Name: Ada")
	assert.Contains(t, prompt, "Height: 170.5 cm")
	assert.Contains(t, prompt, "Weight: 62 kg")
	assert.Contains(t, prompt, "Goal: Recomposition (Fat Loss + Muscle Gain)")
	assert.Contains(t, prompt, `"routine"`)
	assert.Equal(t, prompt, BuildPrompt(p), "prompt is deterministic")
}

func TestPlanResponseSchema(t *testing.T) {
	schema := PlanResponseSchema()
	require.NotNil(t, schema)
	require.NotNil(t, schema.Properties)
	_, ok := schema.Properties.Get("routine")
	assert.True(t, ok)
}

func TestGenerate_StoresPlanBeforeReturning(t *testing.T) {
	f := newFixture(t)
	f.toGenerating(t)
	ctx := context.Background()

	plan, stage, err := f.onboarding.GeneratePlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, flow.PlanReady, stage)
	require.Len(t, plan, 1)
	require.Len(t, plan[0].Exercises, 1)
	assert.Equal(t, "Squat", plan[0].Exercises[0].Name)

	stored, ok := f.store.Plan(ctx)
	require.True(t, ok)
	assert.Equal(t, plan, stored)

	assert.Equal(t, "AIzaSy-key", f.collab.credential)
	assert.Contains(t, f.collab.prompt, "Goal: Recomposition (Fat Loss + Muscle Gain)")
	assert.Equal(t, flow.PlanReady, f.onboarding.Status(ctx).Stage)
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		err    error
		reason error
	}{
		{"unparsable", "Sorry, I can't do that.", nil, ErrUnparsableResponse},
		{"invalid shape", `{"routine":[{"day":1,"exercises":[]}]}`, nil, ErrInvalidPlanShape},
		{"auth", "", fmt.Errorf("%w: key invalid", ai.ErrAuth), ai.ErrAuth},
		{"quota", "", fmt.Errorf("%w: slow down", ai.ErrQuota), ai.ErrQuota},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.toGenerating(t)
			f.collab.reply, f.collab.err = tt.reply, tt.err
			ctx := context.Background()

			_, stage, err := f.onboarding.GeneratePlan(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrGenerationFailed)
			assert.ErrorIs(t, err, tt.reason)
			var genErr *GenerationError
			assert.True(t, errors.As(err, &genErr))
			assert.Equal(t, flow.Generating, stage)

			_, ok := f.store.Plan(ctx)
			assert.False(t, ok, "no partial plan is stored")

			status := f.onboarding.Status(ctx)
			assert.Equal(t, flow.Generating, status.Stage)
			assert.NotEmpty(t, status.GenerationError)
		})
	}
}

func TestGenerate_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.toGenerating(t)
	f.backend.FailWrites = errors.New("disk full")

	_, err := f.generation.Generate(context.Background())
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, repository.ErrStorageUnavailable)
}

func TestGenerate_Preconditions(t *testing.T) {
	f := newFixture(t)
	_, err := f.generation.Generate(context.Background())
	assert.ErrorIs(t, err, ErrGenerationPreconditions)
	assert.NotErrorIs(t, err, ErrGenerationFailed)
	assert.Zero(t, f.collab.calls.Load())
}

func TestGenerate_ConcurrentCallersShareOneCall(t *testing.T) {
	f := newFixture(t)
	f.toGenerating(t)
	f.collab.gate = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]error, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.generation.Generate(context.Background())
		}(i)
	}
	require.Eventually(t, func() bool { return f.collab.calls.Load() == 1 }, time.Second, time.Millisecond)
	// Let the other callers join the in-flight call before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(f.collab.gate)
	wg.Wait()

	for _, err := range results {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.collab.calls.Load())
}

func TestGenerate_CancelledCallerDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	f.toGenerating(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.generation.Generate(ctx)
	require.NoError(t, err)
}

func TestOnboarding_IllegalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.onboarding.SaveProfile(ctx, "Ada", 170, 60)
	assert.ErrorIs(t, err, flow.ErrIllegalTransition)

	_, _, err = f.onboarding.StartPlan(ctx)
	assert.ErrorIs(t, err, flow.ErrIllegalTransition)

	_, err = f.onboarding.SaveCredential(ctx, "k")
	require.NoError(t, err)
	_, err = f.onboarding.SaveCredential(ctx, "k2")
	assert.ErrorIs(t, err, flow.ErrIllegalTransition, "credential is only replaced through reset")
}

func TestOnboarding_ValidationPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.onboarding.SaveCredential(ctx, "   ")
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "apiKey", ve.Field)
	assert.Equal(t, flow.NeedCredential, f.onboarding.Status(ctx).Stage)

	_, err = f.onboarding.SaveCredential(ctx, "k")
	require.NoError(t, err)

	for _, tc := range []struct {
		name           string
		height, weight float64
		field          string
	}{
		{"", 170, 60, "name"},
		{"Ada", 100, 60, "height"},
		{"Ada", 251, 60, "height"},
		{"Ada", 170, 20, "weight"},
		{"Ada", 170, 301, "weight"},
	} {
		_, _, err := f.onboarding.SaveProfile(ctx, tc.name, tc.height, tc.weight)
		require.True(t, errors.As(err, &ve), "%+v", tc)
		assert.Equal(t, tc.field, ve.Field)
	}
	_, ok := f.store.Profile(ctx)
	assert.False(t, ok)

	_, _, err = f.onboarding.SaveProfile(ctx, " Ada ", 250, 300)
	require.NoError(t, err)
	_, _, err = f.onboarding.SelectGoal(ctx, "")
	require.True(t, errors.As(err, &ve))
	_, _, err = f.onboarding.SelectGoal(ctx, "bulk")
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, flow.NeedGoal, f.onboarding.Status(ctx).Stage)
}

func TestOnboarding_FullFlowAndReset(t *testing.T) {
	f := newFixture(t)
	f.toGenerating(t)
	ctx := context.Background()

	_, _, err := f.onboarding.GeneratePlan(ctx)
	require.NoError(t, err)

	progressRec, stage, err := f.onboarding.StartPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, flow.Tracking, stage)
	assert.Equal(t, f.now, progressRec.StartDate)
	assert.Equal(t, "Ada", progressRec.UserProfile.Name)

	// Later edits to the plan do not reach the started snapshot.
	plan, _ := f.store.Plan(ctx)
	plan[0].Exercises[0].Name = "Front Squat"
	require.NoError(t, f.store.SetPlan(ctx, plan))
	stored, _ := f.store.Progress(ctx)
	assert.Equal(t, "Squat", stored.Routine[0].Exercises[0].Name)

	status := f.onboarding.Status(ctx)
	assert.Equal(t, flow.Tracking, status.Stage)
	require.NotNil(t, status.BMI)
	assert.Equal(t, 21.5, status.BMI.Value)

	require.NoError(t, f.onboarding.Reset(ctx))
	snap := f.store.Snapshot(ctx)
	for _, kind := range domain.RecordKinds {
		assert.False(t, snap.Has(kind))
	}
	assert.Equal(t, flow.NeedCredential, f.onboarding.Status(ctx).Stage)
	assert.NoError(t, f.generation.LastError())
}

func TestComputeBMI(t *testing.T) {
	got, err := ComputeBMI(180, 81)
	require.NoError(t, err)
	assert.Equal(t, BMIResult{Value: 25.0, Category: domain.BMIOverweight}, got)

	_, err = ComputeBMI(90, 81)
	assert.Error(t, err)
}

func startTracking(t *testing.T, f *fixture) {
	t.Helper()
	f.toGenerating(t)
	f.collab.reply = `{"routine":[
		{"day":1,"exercises":[{"name":"Squat","sets":4,"reps":"8","rest":"90s"},{"name":"Lunge","sets":3,"reps":"10","rest":"60s"}]},
		{"day":2,"exercises":[{"name":"Row","sets":3,"reps":"12","rest":"60s"}]}]}`
	ctx := context.Background()
	_, _, err := f.onboarding.GeneratePlan(ctx)
	require.NoError(t, err)
	_, _, err = f.onboarding.StartPlan(ctx)
	require.NoError(t, err)
}

func TestTracking_CompleteDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracking.View(ctx, "tab-1")
	assert.ErrorIs(t, err, ErrNotTracking)

	startTracking(t, f)
	f.now = f.now.Add(2 * time.Hour)

	view, err := f.tracking.View(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.ActiveDay)
	assert.Equal(t, 1, view.SelectedDay)
	assert.Equal(t, []bool{false, false}, view.Checked)

	_, err = f.tracking.CompleteDay(ctx, "tab-1")
	assert.ErrorIs(t, err, progress.ErrDayIncomplete)

	_, err = f.tracking.ToggleExercise(ctx, "tab-1", 0)
	require.NoError(t, err)
	view, err = f.tracking.ToggleExercise(ctx, "tab-1", 1)
	require.NoError(t, err)
	assert.True(t, view.CanComplete)

	// Sessions are independent.
	other, err := f.tracking.View(ctx, "tab-2")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, other.Checked)

	view, err = f.tracking.CompleteDay(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.CompletedDays)
	assert.True(t, view.CompletedToday)
	assert.Equal(t, []bool{false, false}, view.Checked)

	stored, ok := f.store.Progress(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, stored.CompletedDays)
	assert.Equal(t, f.now, stored.LastUpdated)
}

func TestTracking_CompleteDayKeepsChecksWhenSaveFails(t *testing.T) {
	f := newFixture(t)
	startTracking(t, f)
	ctx := context.Background()

	_, err := f.tracking.ToggleExercise(ctx, "tab-1", 0)
	require.NoError(t, err)
	_, err = f.tracking.ToggleExercise(ctx, "tab-1", 1)
	require.NoError(t, err)

	f.backend.FailWrites = errors.New("quota")
	view, err := f.tracking.CompleteDay(ctx, "tab-1")
	assert.ErrorIs(t, err, repository.ErrStorageUnavailable)
	assert.Equal(t, []bool{true, true}, view.Checked)
	assert.Equal(t, 0, view.CompletedDays)

	f.backend.FailWrites = nil
	view, err = f.tracking.View(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, view.Checked)
	assert.True(t, view.CanComplete)

	view, err = f.tracking.CompleteDay(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.CompletedDays)
	assert.Equal(t, []bool{false, false}, view.Checked)
}

func TestTracking_SelectDay(t *testing.T) {
	f := newFixture(t)
	startTracking(t, f)
	ctx := context.Background()

	_, err := f.tracking.ToggleExercise(ctx, "s", 0)
	require.NoError(t, err)
	view, err := f.tracking.SelectDay(ctx, "s", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.SelectedDay)
	require.NotNil(t, view.DayPlan)
	assert.Equal(t, "Row", view.DayPlan.Exercises[0].Name)
	assert.Equal(t, []bool{false}, view.Checked)

	view, err = f.tracking.SelectDay(ctx, "s", 5)
	require.NoError(t, err)
	assert.Nil(t, view.DayPlan)

	_, err = f.tracking.SelectDay(ctx, "s", 0)
	assert.ErrorIs(t, err, progress.ErrInvalidDay)
}

func TestTracking_RestartedPlanResetsSession(t *testing.T) {
	f := newFixture(t)
	startTracking(t, f)
	ctx := context.Background()

	_, err := f.tracking.ToggleExercise(ctx, "s", 0)
	require.NoError(t, err)

	require.NoError(t, f.onboarding.Reset(ctx))
	f.now = f.now.Add(3 * time.Hour)
	startTracking(t, f)

	view, err := f.tracking.View(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, view.Checked)
}

func TestTracking_EvictsIdleSessions(t *testing.T) {
	f := newFixture(t)
	startTracking(t, f)
	ctx := context.Background()

	_, err := f.tracking.View(ctx, "old")
	require.NoError(t, err)
	f.now = f.now.Add(25 * time.Hour)
	_, err = f.tracking.View(ctx, "new")
	require.NoError(t, err)

	f.tracking.mu.Lock()
	defer f.tracking.mu.Unlock()
	assert.NotContains(t, f.tracking.sessions, "old")
	assert.Contains(t, f.tracking.sessions, "new")
}

func TestFactsFromSnapshot(t *testing.T) {
	assert.Equal(t, flow.Facts{}, FactsFromSnapshot(repository.Snapshot{}))
	p := &domain.Profile{Name: "Ada", FitnessGoal: domain.GoalStrength}
	got := FactsFromSnapshot(repository.Snapshot{HasCredential: true, Profile: p})
	assert.Equal(t, flow.Facts{HasCredential: true, HasProfile: true, HasGoal: true}, got)
	assert.Equal(t, flow.Generating, flow.Derive(got))
}
