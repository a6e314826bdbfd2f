package memory

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	tabID := "test-" + uuid.NewString()
	require.NoError(t, store.Save(ctx, tabID, []byte(`[{"role":"user","content":"a"}]`)))
	require.NoError(t, store.Save(ctx, tabID, []byte(`[{"role":"user","content":"b"}]`)))

	got, err := store.Load(ctx, tabID)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"role":"user","content":"b"}]`, string(got))

	require.NoError(t, store.Delete(ctx, tabID))
	_, err = store.Load(ctx, tabID)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
