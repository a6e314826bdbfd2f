package memory

import (
	"context"
	"strings"
)

// NewSnapshotStore creates a postgres-backed store when configured, otherwise in-memory.
func NewSnapshotStore(ctx context.Context, databaseURL string) (SnapshotStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
