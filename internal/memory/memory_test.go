package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushKeepsTurnBound(t *testing.T) {
	m := New(Options{})
	for i := 0; i < 40; i++ {
		m.Push(RoleUser, fmt.Sprintf("msg-%d", i))
		require.LessOrEqual(t, m.Len(), DefaultMaxTurns)
	}

	turns := m.Turns()
	require.Len(t, turns, DefaultMaxTurns)
	assert.Equal(t, "msg-28", turns[0].Content)
	assert.Equal(t, "msg-39", turns[len(turns)-1].Content)
}

func TestPushTruncatesContent(t *testing.T) {
	m := New(Options{})
	m.Push(RoleAssistant, strings.Repeat("a", DefaultMaxCharsEach+500))

	got := m.Turns()[0].Content
	assert.True(t, strings.HasSuffix(got, TruncationMarker))
	assert.Equal(t, DefaultMaxCharsEach+utf8.RuneCountInString(TruncationMarker), utf8.RuneCountInString(got))
}

func TestClampCountsCharactersNotBytes(t *testing.T) {
	assert.Equal(t, "héé…", Clamp("  hééllo ", 3))
	assert.Equal(t, "short", Clamp("short", 10))
}

func TestClearDropsTurnsPinnedAndSnapshot(t *testing.T) {
	store := NewInMemoryStore()
	m := New(Options{Store: store, TabID: "tab-1"})
	m.SetPinned("sticky")
	m.Push(RoleUser, "hi")

	m.Clear()

	assert.Zero(t, m.Len())
	assert.Empty(t, m.Pinned())
	_, err := store.Load(context.Background(), "tab-1")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotRoundTripAcrossRestore(t *testing.T) {
	store := NewInMemoryStore()
	first := New(Options{Store: store, TabID: "tab-1"})
	first.Push(RoleUser, "hello")
	first.Push(RoleAssistant, "hi there")
	first.Push(RoleUser, "ok")

	reloaded := New(Options{Store: store, TabID: "tab-1"})
	reloaded.Restore(context.Background())

	if diff := cmp.Diff(first.Turns(), reloaded.Turns()); diff != "" {
		t.Fatalf("restored turns mismatch (-want +got):\n%s", diff)
	}
}

func TestRestoreIsScopedToTab(t *testing.T) {
	store := NewInMemoryStore()
	New(Options{Store: store, TabID: "tab-1"}).Push(RoleUser, "mine")

	other := New(Options{Store: store, TabID: "tab-2"})
	other.Restore(context.Background())
	assert.Zero(t, other.Len())
}

func TestRestoreFallsBackToEmptyOnMalformedSnapshot(t *testing.T) {
	payloads := map[string]string{
		"invalid json": `{not json`,
		"not an array": `{"role":"user","content":"x"}`,
		"unknown role": `[{"role":"system","content":"x"}]`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			store := NewInMemoryStore()
			require.NoError(t, store.Save(context.Background(), "tab", []byte(payload)))

			m := New(Options{Store: store, TabID: "tab"})
			m.Restore(context.Background())
			assert.Zero(t, m.Len())
		})
	}
}

func TestRestoreReappliesBounds(t *testing.T) {
	turns := make([]Turn, 0, 20)
	for i := 0; i < 20; i++ {
		turns = append(turns, Turn{Role: RoleUser, Content: fmt.Sprintf("t%d", i)})
	}
	payload, err := EncodeSnapshot(turns)
	require.NoError(t, err)

	store := NewInMemoryStore()
	require.NoError(t, store.Save(context.Background(), "tab", payload))

	m := New(Options{Store: store, TabID: "tab", MaxTurns: 5})
	m.Restore(context.Background())
	got := m.Turns()
	require.Len(t, got, 5)
	assert.Equal(t, "t15", got[0].Content)
}

func TestPushSurvivesStoreFailure(t *testing.T) {
	m := New(Options{Store: failingStore{}, TabID: "tab"})
	m.Push(RoleUser, "still remembered")
	assert.Equal(t, 1, m.Len())
}

func TestDeferredPersistWritesOnFlush(t *testing.T) {
	store := NewInMemoryStore()
	m := New(Options{Store: store, TabID: "tab", DeferPersist: true})

	m.Push(RoleUser, "hi")
	m.Push(RoleAssistant, "hello")
	_, err := store.Load(context.Background(), "tab")
	require.ErrorIs(t, err, ErrSnapshotNotFound, "deferred memory must not write before Flush")

	m.Flush()
	payload, err := store.Load(context.Background(), "tab")
	require.NoError(t, err)
	turns, err := DecodeSnapshot(payload)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	m.Clear()
	_, err = store.Load(context.Background(), "tab")
	require.NoError(t, err, "Clear is deferred too")

	m.Flush()
	_, err = store.Load(context.Background(), "tab")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestFlushRetriesAfterStoreFailure(t *testing.T) {
	store := &flakyStore{InMemoryStore: NewInMemoryStore(), failures: 1}
	m := New(Options{Store: store, TabID: "tab", DeferPersist: true})
	m.Push(RoleUser, "hi")

	m.Flush()
	_, err := store.Load(context.Background(), "tab")
	require.ErrorIs(t, err, ErrSnapshotNotFound)

	m.Flush()
	_, err = store.Load(context.Background(), "tab")
	assert.NoError(t, err, "a failed write must be retried by the next Flush")
}

type flakyStore struct {
	*InMemoryStore
	failures int
}

func (s *flakyStore) Save(ctx context.Context, tabID string, payload []byte) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("down")
	}
	return s.InMemoryStore.Save(ctx, tabID, payload)
}

func TestEncodeEmptySnapshotIsArray(t *testing.T) {
	payload, err := EncodeSnapshot(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(payload))
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (failingStore) Save(context.Context, string, []byte) error   { return errors.New("down") }
func (failingStore) Delete(context.Context, string) error         { return errors.New("down") }
func (failingStore) Close() error                                 { return nil }
