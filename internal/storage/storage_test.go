package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// backendContract runs the behaviour every Backend must share.
func backendContract(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, found, err := b.Load(ctx, "fitflow_user_profile")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Save(ctx, "fitflow_user_profile", []byte(`{"name":"Ada"}`)))
	require.NoError(t, b.Save(ctx, "fitflow_api_key", []byte(`"secret"`)))

	v, found, err := b.Load(ctx, "fitflow_user_profile")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"name":"Ada"}`, string(v))

	require.NoError(t, b.Save(ctx, "fitflow_user_profile", []byte(`{"name":"Grace"}`)))
	v, _, _ = b.Load(ctx, "fitflow_user_profile")
	assert.JSONEq(t, `{"name":"Grace"}`, string(v))

	require.NoError(t, b.Delete(ctx, "fitflow_user_profile", "fitflow_api_key", "fitflow_routine"))
	for _, k := range []string{"fitflow_user_profile", "fitflow_api_key"} {
		_, found, err = b.Load(ctx, k)
		require.NoError(t, err)
		assert.False(t, found, k)
	}
}

func TestMemoryBackend_Contract(t *testing.T) {
	backendContract(t, NewMemoryBackend())
}

func TestFileBackend_Contract(t *testing.T) {
	fb, err := NewFileBackend(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	backendContract(t, fb)
}

func TestFileBackend_RejectsPathKeys(t *testing.T) {
	fb, err := NewFileBackend(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Error(t, fb.Save(context.Background(), "../escape", []byte("x")))
	_, _, err = fb.Load(context.Background(), "a/b")
	assert.Error(t, err)
}

func TestFileBackend_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir, nil)
	require.NoError(t, err)
	require.NoError(t, fb.Save(context.Background(), "fitflow_routine", []byte(`[]`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fitflow_routine.json", entries[0].Name())
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) find(key string, removed bool) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Key == key && e.Removed == removed {
			return e, true
		}
	}
	return Event{}, false
}

func TestFileBackend_WatchSeesOtherWriters(t *testing.T) {
	dir := t.TempDir()
	watched, err := NewFileBackend(dir, zap.NewNop())
	require.NoError(t, err)
	writer, err := NewFileBackend(dir, zap.NewNop())
	require.NoError(t, err)

	log := &eventLog{}
	cancel, err := watched.Watch(log.add)
	require.NoError(t, err)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, writer.Save(ctx, "fitflow_user_profile", []byte(`{"name":"Ada"}`)))

	require.Eventually(t, func() bool {
		e, ok := log.find("fitflow_user_profile", false)
		return ok && bytes.Equal(e.Value, []byte(`{"name":"Ada"}`))
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, writer.Delete(ctx, "fitflow_user_profile"))
	require.Eventually(t, func() bool {
		_, ok := log.find("fitflow_user_profile", true)
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	// stray files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))
	time.Sleep(100 * time.Millisecond)
	_, ok := log.find("notes", false)
	assert.False(t, ok)

	cancel()
	cancel()
}

func TestMemoryBackend_WatchAndCancel(t *testing.T) {
	m := NewMemoryBackend()
	log := &eventLog{}
	cancel, err := m.Watch(log.add)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Save(ctx, "k", []byte("1")))
	require.NoError(t, m.Delete(ctx, "k", "missing"))

	e, ok := log.find("k", false)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), e.Value)
	_, ok = log.find("k", true)
	assert.True(t, ok)
	_, ok = log.find("missing", true)
	assert.False(t, ok, "deleting an absent key emits nothing")

	cancel()
	require.NoError(t, m.Save(ctx, "after", []byte("2")))
	_, ok = log.find("after", false)
	assert.False(t, ok)
}

func TestMemoryBackend_EventsNameWriter(t *testing.T) {
	m := NewMemoryBackend()
	log := &eventLog{}
	cancel, err := m.Watch(log.add)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, m.Save(WithWriter(context.Background(), "tab-a"), "k", []byte("1")))
	require.NoError(t, m.Save(context.Background(), "j", []byte("2")))
	require.NoError(t, m.Delete(WithWriter(context.Background(), "tab-a"), "k"))

	e, ok := log.find("k", false)
	require.True(t, ok)
	assert.Equal(t, "tab-a", e.Writer)
	e, ok = log.find("j", false)
	require.True(t, ok)
	assert.Empty(t, e.Writer)
	e, ok = log.find("k", true)
	require.True(t, ok)
	assert.Equal(t, "tab-a", e.Writer)
}

func TestFileBackend_EventsNameOwnWriter(t *testing.T) {
	dir := t.TempDir()
	own, err := NewFileBackend(dir, zap.NewNop())
	require.NoError(t, err)
	other, err := NewFileBackend(dir, zap.NewNop())
	require.NoError(t, err)

	log := &eventLog{}
	cancel, err := own.Watch(log.add)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, own.Save(WithWriter(context.Background(), "tab-a"), "fitflow_routine", []byte(`[1]`)))
	require.NoError(t, other.Save(context.Background(), "fitflow_progress", []byte(`{"completedDays":1}`)))

	require.Eventually(t, func() bool {
		_, a := log.find("fitflow_routine", false)
		_, b := log.find("fitflow_progress", false)
		return a && b
	}, 5*time.Second, 20*time.Millisecond)
	e, _ := log.find("fitflow_routine", false)
	assert.Equal(t, "tab-a", e.Writer)
	e, _ = log.find("fitflow_progress", false)
	assert.Empty(t, e.Writer)

	require.NoError(t, own.Delete(WithWriter(context.Background(), "tab-a"), "fitflow_routine"))
	require.Eventually(t, func() bool {
		_, ok := log.find("fitflow_routine", true)
		return ok
	}, 5*time.Second, 20*time.Millisecond)
	e, _ = log.find("fitflow_routine", true)
	assert.Equal(t, "tab-a", e.Writer)
}

func TestMemoryBackend_FailWrites(t *testing.T) {
	m := NewMemoryBackend()
	m.FailWrites = assert.AnError
	assert.ErrorIs(t, m.Save(context.Background(), "k", []byte("1")), assert.AnError)
	assert.ErrorIs(t, m.Delete(context.Background(), "k"), assert.AnError)

	require.NoError(t, m.Close())
	_, _, err := m.Load(context.Background(), "k")
	assert.ErrorIs(t, err, ErrBackendClosed)
}

// fakeS3 is an in-memory stand-in for the S3 client.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3Backend_Contract(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	b := newS3Backend(fake, "bucket", "users/local", zap.NewNop())
	backendContract(t, b)

	require.NoError(t, b.Save(context.Background(), "fitflow_routine", []byte(`[]`)))
	_, ok := fake.objects["users/local/fitflow_routine.json"]
	assert.True(t, ok, "objects live under the prefix")
}
