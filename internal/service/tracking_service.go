package service

import (
	"alcyxob/fitflow/internal/domain"
	"alcyxob/fitflow/internal/progress"
	"alcyxob/fitflow/internal/repository"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotTracking is returned by tracking operations before the plan is started.
var ErrNotTracking = errors.New("the plan has not been started yet")

// sessionIdle is how long an unused tracking session is kept.
const sessionIdle = 24 * time.Hour

// --- Service Interface ---
type TrackingService interface {
	View(ctx context.Context, session string) (progress.View, error)
	SelectDay(ctx context.Context, session string, day int) (progress.View, error)
	ToggleExercise(ctx context.Context, session string, index int) (progress.View, error)
	CompleteDay(ctx context.Context, session string) (progress.View, error)
}

// --- Service Implementation ---

type trackingSession struct {
	tracker  *progress.Tracker
	start    time.Time // StartDate of the progress record the tracker belongs to
	lastSeen time.Time
}

type trackingService struct {
	records repository.RecordRepository
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*trackingSession
}

// NewTrackingService creates a new instance of trackingService. Calendar dates are
// evaluated in loc.
func NewTrackingService(records repository.RecordRepository, loc *time.Location, logger *zap.Logger) TrackingService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &trackingService{
		records:  records,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*trackingSession),
	}
}

// withSession reloads the progress record and runs fn with the session's tracker
// under the service lock.
func (s *trackingService) withSession(ctx context.Context, session string, fn func(p domain.Progress, t *progress.Tracker, now time.Time) error) (progress.View, error) {
	p, ok := s.records.Progress(ctx)
	if !ok {
		return progress.View{}, ErrNotTracking
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(now)

	sess, ok := s.sessions[session]
	if !ok || !sess.start.Equal(p.StartDate) {
		// New session, or the plan was reset and restarted since the last visit.
		sess = &trackingSession{
			tracker: progress.NewTracker(progress.ActiveDay(p.StartDate, now)),
			start:   p.StartDate,
		}
		s.sessions[session] = sess
	}
	sess.lastSeen = now

	if fn != nil {
		if err := fn(*p, sess.tracker, now); err != nil {
			return sess.tracker.View(*p, now, s.loc), err
		}
		// fn may have written a newer record
		if fresh, ok := s.records.Progress(ctx); ok {
			p = fresh
		}
	}
	return sess.tracker.View(*p, now, s.loc), nil
}

func (s *trackingService) evictLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > sessionIdle {
			delete(s.sessions, id)
		}
	}
}

func (s *trackingService) View(ctx context.Context, session string) (progress.View, error) {
	return s.withSession(ctx, session, nil)
}

func (s *trackingService) SelectDay(ctx context.Context, session string, day int) (progress.View, error) {
	return s.withSession(ctx, session, func(_ domain.Progress, t *progress.Tracker, _ time.Time) error {
		return t.SelectDay(day)
	})
}

func (s *trackingService) ToggleExercise(ctx context.Context, session string, index int) (progress.View, error) {
	return s.withSession(ctx, session, func(p domain.Progress, t *progress.Tracker, _ time.Time) error {
		_, err := t.Toggle(p, index)
		return err
	})
}

func (s *trackingService) CompleteDay(ctx context.Context, session string) (progress.View, error) {
	return s.withSession(ctx, session, func(p domain.Progress, t *progress.Tracker, now time.Time) error {
		updated, err := t.CompleteDay(p, now, s.loc)
		if err != nil {
			return err
		}
		if err := s.records.SetProgress(ctx, updated); err != nil {
			return err
		}
		t.ClearChecks()
		s.logger.Info("day completed",
			zap.Int("day", t.Selected()), zap.Int("completedDays", updated.CompletedDays))
		return nil
	})
}
