package repository

import (
	"alcyxob/fitflow/internal/domain"
	"alcyxob/fitflow/internal/secret"
	"alcyxob/fitflow/internal/storage"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// RecordStore is the typed view of the four durable records over a storage backend.
// Reads never fail: absence, backend errors and corrupt text all read as "absent".
// Writes are sequential within one store and durable before they return.
type RecordStore struct {
	backend storage.Backend
	notify  Broadcaster
	origin  string // tags backend writes when notify has an Origin
	box     *secret.Box
	logger  *zap.Logger

	// ClearAll holds the write lock so no reader here observes a partial reset.
	mu sync.RWMutex
}

// NewRecordStore wires the typed store. notify and box may be nil.
// When notify also implements Originator, backend writes are tagged with its origin.
func NewRecordStore(backend storage.Backend, notify Broadcaster, box *secret.Box, logger *zap.Logger) *RecordStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RecordStore{
		backend: backend,
		notify:  notify,
		box:     box,
		logger:  logger,
	}
	if o, ok := notify.(Originator); ok {
		s.origin = o.Origin()
	}
	return s
}

// Close releases the backend.
func (s *RecordStore) Close() error {
	return s.backend.Close()
}

// RedactedCredential is what peers are told when the credential changes.
const RedactedCredential = "[redacted]"

// --- Credential ---

// Credential returns the stored AI service key.
func (s *RecordStore) Credential(ctx context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credentialLocked(ctx)
}

// SetCredential replaces the stored AI service key.
func (s *RecordStore) SetCredential(ctx context.Context, credential string) error {
	sealed, err := s.box.Seal(credential)
	if err != nil {
		return fmt.Errorf("%w: sealing credential: %v", ErrStorageUnavailable, err)
	}
	return s.save(ctx, domain.RecordCredential, sealed, RedactedCredential)
}

// --- Profile ---

// Profile returns the stored profile.
func (s *RecordStore) Profile(ctx context.Context) (*domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileLocked(ctx)
}

// SetProfile overwrites the stored profile.
func (s *RecordStore) SetProfile(ctx context.Context, p domain.Profile) error {
	return s.save(ctx, domain.RecordProfile, p, p)
}

// --- Plan ---

// Plan returns the stored plan. A stored plan that fails validation is corrupt.
func (s *RecordStore) Plan(ctx context.Context) (domain.Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.planLocked(ctx)
}

// SetPlan overwrites the stored plan. Only a valid plan is ever written.
func (s *RecordStore) SetPlan(ctx context.Context, p domain.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.save(ctx, domain.RecordPlan, p, p)
}

// --- Progress ---

// Progress returns the stored progress record.
func (s *RecordStore) Progress(ctx context.Context) (*domain.Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progressLocked(ctx)
}

// SetProgress overwrites the stored progress record.
func (s *RecordStore) SetProgress(ctx context.Context, p domain.Progress) error {
	return s.save(ctx, domain.RecordProgress, p, p)
}

// --- Whole store ---

// Snapshot loads every record under one read lock.
func (s *RecordStore) Snapshot(ctx context.Context) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap Snapshot
	_, snap.HasCredential = s.credentialLocked(ctx)
	snap.Profile, _ = s.profileLocked(ctx)
	snap.Plan, _ = s.planLocked(ctx)
	snap.Progress, _ = s.progressLocked(ctx)
	return snap
}

// ClearAll removes all four records and broadcasts each key as removed.
func (s *RecordStore) ClearAll(ctx context.Context) error {
	keys := domain.RecordKeys()

	s.mu.Lock()
	err := s.backend.Delete(storage.WithWriter(ctx, s.origin), keys...)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to clear records", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.logger.Info("all records cleared")
	for _, k := range keys {
		s.broadcast(k, nil)
	}
	return nil
}

// --- internals ---

// The *Locked helpers expect the caller to hold mu.
func (s *RecordStore) credentialLocked(ctx context.Context) (string, bool) {
	var stored string
	if !s.loadLocked(ctx, domain.RecordCredential, &stored) {
		return "", false
	}
	plain, err := s.box.Open(stored)
	if err != nil {
		s.logger.Warn("credential could not be opened, treating as absent",
			zap.Error(fmt.Errorf("%w: %v", ErrCorruptRecord, err)))
		return "", false
	}
	return plain, plain != ""
}

func (s *RecordStore) profileLocked(ctx context.Context) (*domain.Profile, bool) {
	var p domain.Profile
	if !s.loadLocked(ctx, domain.RecordProfile, &p) {
		return nil, false
	}
	return &p, true
}

func (s *RecordStore) planLocked(ctx context.Context) (domain.Plan, bool) {
	var p domain.Plan
	if !s.loadLocked(ctx, domain.RecordPlan, &p) {
		return nil, false
	}
	if err := p.Validate(); err != nil {
		s.logger.Warn("stored plan is malformed, treating as absent",
			zap.String("key", domain.KeyPlan), zap.Error(fmt.Errorf("%w: %v", ErrCorruptRecord, err)))
		return nil, false
	}
	return p, true
}

func (s *RecordStore) progressLocked(ctx context.Context) (*domain.Progress, bool) {
	var p domain.Progress
	if !s.loadLocked(ctx, domain.RecordProgress, &p) {
		return nil, false
	}
	return &p, true
}

func (s *RecordStore) loadLocked(ctx context.Context, kind domain.RecordKind, into any) bool {
	key := kind.Key()
	data, found, err := s.backend.Load(ctx, key)
	if err != nil {
		s.logger.Warn("record read failed, treating as absent",
			zap.String("key", key), zap.Error(fmt.Errorf("%w: %v", ErrStorageUnavailable, err)))
		return false
	}
	if !found {
		return false
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return false
	}
	if err := DecodeRecord(data, into); err != nil {
		s.logger.Warn("record is corrupt, treating as absent", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// save encodes value and writes it; broadcastValue is what peers are told.
func (s *RecordStore) save(ctx context.Context, kind domain.RecordKind, value any, broadcastValue any) error {
	key := kind.Key()
	data, err := EncodeRecord(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = s.backend.Save(storage.WithWriter(ctx, s.origin), key, data)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("record write failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: writing %s: %v", ErrStorageUnavailable, key, err)
	}
	s.logger.Debug("record written", zap.String("key", key), zap.Int("bytes", len(data)))
	s.broadcast(key, broadcastValue)
	return nil
}

// broadcast runs after the lock is released: listeners may read the store synchronously.
func (s *RecordStore) broadcast(key string, value any) {
	if s.notify == nil {
		return
	}
	s.notify.Broadcast(key, value)
}

// EncodeRecord serializes a record as indented JSON text.
func EncodeRecord(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return data, nil
}

// DecodeRecord parses record text into v, reporting failures as ErrCorruptRecord.
func DecodeRecord(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return nil
}

// IsStorageUnavailable reports whether err came from a failed write.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
