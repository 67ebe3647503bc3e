package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const recordFileExt = ".json"

var validKey = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// FileBackend stores one file per key in a directory, like a browser's local storage
// scoped to one origin. Writes go to a temp file first and are renamed into place, so
// a reader never sees a half-written record.
type FileBackend struct {
	dir    string
	logger *zap.Logger

	// last tagged mutation per key made through this backend, for Event.Writer
	mu  sync.Mutex
	own map[string]ownWrite
}

type ownWrite struct {
	writer string
	data   []byte // nil for a removal
}

// NewFileBackend opens (creating if needed) a record directory.
func NewFileBackend(dir string, logger *zap.Logger) (*FileBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create record directory %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, logger: logger, own: make(map[string]ownWrite)}, nil
}

// Dir returns the record directory.
func (f *FileBackend) Dir() string { return f.dir }

func (f *FileBackend) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid record key %q", key)
	}
	return filepath.Join(f.dir, key+recordFileExt), nil
}

func (f *FileBackend) Load(_ context.Context, key string) ([]byte, bool, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (f *FileBackend) Save(ctx context.Context, key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, "."+key+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	// recorded before the rename so the watcher never sees the file first
	f.remember(ctx, key, append([]byte{}, value...))
	if err := os.Rename(tmpName, p); err != nil {
		f.forget(key)
		cleanup()
		return err
	}
	return nil
}

func (f *FileBackend) Delete(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		p, err := f.path(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		f.remember(ctx, key, nil)
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.forget(key)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FileBackend) remember(ctx context.Context, key string, data []byte) {
	writer := WriterFrom(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if writer == "" {
		delete(f.own, key)
		return
	}
	f.own[key] = ownWrite{writer: writer, data: data}
}

func (f *FileBackend) forget(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.own, key)
}

// writerOf names the writer when the observed state is the last one written through f.
// Any other state means someone else wrote since, so the entry is dropped.
func (f *FileBackend) writerOf(key string, data []byte, removed bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.own[key]
	if !ok {
		return ""
	}
	if removed == (w.data == nil) && bytes.Equal(w.data, data) {
		return w.writer
	}
	delete(f.own, key)
	return ""
}

func (f *FileBackend) Close() error { return nil }

// Watch delivers an Event whenever a record file in the directory is written or removed,
// by this process or any other. Temp files are ignored and repeated identical contents
// for a key are delivered once.
func (f *FileBackend) Watch(fn func(Event)) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(f.dir); err != nil {
		w.Close()
		return nil, err
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	go f.watchLoop(w, fn, stopCh, doneCh)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
			if err := w.Close(); err != nil {
				f.logger.Warn("record watcher: close failed", zap.Error(err))
			}
		})
	}, nil
}

func (f *FileBackend) watchLoop(w *fsnotify.Watcher, fn func(Event), stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	// last delivered contents per key; nil entry means "removed"
	last := make(map[string][]byte)

	for {
		select {
		case <-stopCh:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordFileExt) {
				continue
			}
			key := strings.TrimSuffix(name, recordFileExt)
			if !validKey.MatchString(key) {
				continue
			}

			data, err := os.ReadFile(ev.Name)
			switch {
			case errors.Is(err, os.ErrNotExist):
				if prev, seen := last[key]; seen && prev == nil {
					continue
				}
				last[key] = nil
				fn(Event{Key: key, Removed: true, Writer: f.writerOf(key, nil, true)})
			case err != nil:
				f.logger.Debug("record watcher: read failed", zap.String("key", key), zap.Error(err))
			default:
				if prev, seen := last[key]; seen && prev != nil && bytes.Equal(prev, data) {
					continue
				}
				last[key] = data
				fn(Event{Key: key, Value: data, Writer: f.writerOf(key, data, false)})
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.logger.Warn("record watcher: error", zap.Error(err))
		}
	}
}
