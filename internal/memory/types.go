package memory

import (
	"context"
	"errors"
)

// Role tags the origin of a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Label is the prefix used when a turn is rendered into a prompt.
func (r Role) Label() string {
	if r == RoleUser {
		return "User"
	}
	return "Assistant"
}

// Turn stores a single user or assistant message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists one opaque snapshot per browser tab. Payloads are kept
// as raw bytes so a corrupt entry is detected (and discarded) on restore rather
// than at write time.
type SnapshotStore interface {
	Load(ctx context.Context, tabID string) ([]byte, error)
	Save(ctx context.Context, tabID string, payload []byte) error
	Delete(ctx context.Context, tabID string) error
	Close() error
}
