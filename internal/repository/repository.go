package repository

import (
	"alcyxob/fitflow/internal/domain"
	"context"
)

// Error constants for the repository layer
var (
	// ErrStorageUnavailable wraps any failure to durably write (quota, disabled storage,
	// unreachable database). It is never fatal; callers surface it to the user.
	ErrStorageUnavailable = RepositoryError("storage unavailable")

	// ErrCorruptRecord marks stored text that cannot be decoded into the expected shape.
	// Reads log it and report the record as absent.
	ErrCorruptRecord = RepositoryError("corrupt record")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Broadcaster is told about every successful mutation so other contexts can refresh.
// Broadcast must not block on peers and never fails the write.
type Broadcaster interface {
	Broadcast(key string, value any)
}

// Originator identifies the context a Broadcaster speaks for.
type Originator interface {
	Origin() string
}

// RecordRepository is the typed record store used by the services.
// Getters report absence with the boolean and never fail.
type RecordRepository interface {
	Credential(ctx context.Context) (string, bool)
	SetCredential(ctx context.Context, credential string) error
	Profile(ctx context.Context) (*domain.Profile, bool)
	SetProfile(ctx context.Context, p domain.Profile) error
	Plan(ctx context.Context) (domain.Plan, bool)
	SetPlan(ctx context.Context, p domain.Plan) error
	Progress(ctx context.Context) (*domain.Progress, bool)
	SetProgress(ctx context.Context, p domain.Progress) error
	Snapshot(ctx context.Context) Snapshot
	ClearAll(ctx context.Context) error
}

var _ RecordRepository = (*RecordStore)(nil)

// Snapshot is every record loaded at once, for deriving the onboarding stage.
type Snapshot struct {
	HasCredential bool
	Profile       *domain.Profile
	Plan          domain.Plan // nil when absent
	Progress      *domain.Progress
}

// Has reports whether the record of the given kind is present.
func (s Snapshot) Has(kind domain.RecordKind) bool {
	switch kind {
	case domain.RecordCredential:
		return s.HasCredential
	case domain.RecordProfile:
		return s.Profile != nil
	case domain.RecordPlan:
		return s.Plan != nil
	case domain.RecordProgress:
		return s.Progress != nil
	}
	return false
}
