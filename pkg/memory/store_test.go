package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLongTermMissingFile(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	content, err := store.ReadLongTerm()
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestWriteThenReadLongTerm(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	require.NoError(t, store.WriteLongTerm("User prefers short answers."))

	content, err := store.ReadLongTerm()
	require.NoError(t, err)
	assert.Equal(t, "User prefers short answers.", content)
}

func TestAppendHistoryBlocks(t *testing.T) {
	ws := t.TempDir()
	store := NewStore(ws, nil)

	require.NoError(t, store.AppendHistory("[2026-08-30 10:00] First entry."))
	require.NoError(t, store.AppendHistory("  [2026-08-30 11:00] Second entry.  "))
	require.NoError(t, store.AppendHistory("   "))

	data, err := os.ReadFile(filepath.Join(ws, "memory", "HISTORY.md"))
	require.NoError(t, err)
	assert.Equal(t, "[2026-08-30 10:00] First entry.\n\n[2026-08-30 11:00] Second entry.\n\n", string(data))
}

func TestGetMemoryContext(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	assert.Empty(t, store.GetMemoryContext())

	require.NoError(t, store.WriteLongTerm("Lives in Oslo."))
	assert.Equal(t, "## Long-term Memory\nLives in Oslo.", store.GetMemoryContext())
}

type stubViking struct {
	memory string
	doc    string
	err    error
}

func (v *stubViking) SearchUserMemory(context.Context, string) (string, error) {
	return v.memory, v.err
}

func (v *stubViking) Read(context.Context, string) (string, error) {
	return v.doc, v.err
}

func (v *stubViking) List(context.Context, string) (string, error) { return "", v.err }

func (v *stubViking) Search(context.Context, string, string) (string, error) { return "", v.err }

func (v *stubViking) Grep(context.Context, string, string) (string, error) { return "", v.err }

func (v *stubViking) Glob(context.Context, string, string) (string, error) { return "", v.err }

func (v *stubViking) CommitConversation(context.Context, string) error { return v.err }

func TestVikingLookupsDegradeToEmpty(t *testing.T) {
	ctx := context.Background()

	noClient := NewStore(t.TempDir(), nil)
	assert.Empty(t, noClient.GetVikingMemory(ctx, "query"))
	assert.Empty(t, noClient.GetVikingContext(ctx, "viking://doc"))

	failing := NewStore(t.TempDir(), &stubViking{err: errors.New("unreachable")})
	assert.Empty(t, failing.GetVikingMemory(ctx, "query"))
	assert.Empty(t, failing.GetVikingContext(ctx, "viking://doc"))

	working := NewStore(t.TempDir(), &stubViking{memory: "remembered fact", doc: "doc body"})
	assert.Equal(t, "remembered fact", working.GetVikingMemory(ctx, "query"))
	assert.Equal(t, "doc body", working.GetVikingContext(ctx, "viking://doc"))
}
