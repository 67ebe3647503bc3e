package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a real server: FITFLOW_TEST_MONGO_URI=mongodb://localhost:27017
func TestRecordBackend_Integration(t *testing.T) {
	uri := os.Getenv("FITFLOW_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("FITFLOW_TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	client, err := ConnectDB(ctx, uri)
	require.NoError(t, err)
	db := client.Database("fitflow_test_" + uuid.NewString()[:8])
	defer func() { _ = db.Drop(context.Background()) }()

	backend := NewRecordBackend(client, db)
	defer backend.Close()

	_, found, err := backend.Load(ctx, "fitflow_routine")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, backend.Save(ctx, "fitflow_routine", []byte(`[{"day":1}]`)))
	require.NoError(t, backend.Save(ctx, "fitflow_routine", []byte(`[{"day":2}]`)))
	v, found, err := backend.Load(ctx, "fitflow_routine")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `[{"day":2}]`, string(v))

	require.NoError(t, backend.Delete(ctx, "fitflow_routine", "fitflow_progress"))
	_, found, err = backend.Load(ctx, "fitflow_routine")
	require.NoError(t, err)
	assert.False(t, found)
}
