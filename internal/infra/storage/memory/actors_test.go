package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/infra/storage/memory"
)

const fixtures = `[
  {"id": "doc-ada", "uid": "u1", "name": "Ada", "token": "t1"},
  {"id": "doc-alan", "uid": "u2", "display_name": "alan", "token": "t2"},
  {"id": "doc-pending", "email": "pending@example.com", "token": "t3"}
]`

func loadRegistry(t *testing.T) *memory.ActorRegistry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "actors.json")
	require.NoError(t, os.WriteFile(path, []byte(fixtures), 0o600))
	r := memory.NewActorRegistry()
	n, err := r.LoadFixtures(path)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return r
}

func TestActorRegistryCurrentActor(t *testing.T) {
	r := loadRegistry(t)
	ctx := context.Background()

	actor, ok := r.CurrentActor(ctx, "t1")
	require.True(t, ok)
	assert.Equal(t, "u1", actor.ID)

	_, ok = r.CurrentActor(ctx, "t3")
	assert.False(t, ok, "entries without uid cannot sign in")
	_, ok = r.CurrentActor(ctx, "nope")
	assert.False(t, ok)
}

func TestActorRegistryListOthers(t *testing.T) {
	r := loadRegistry(t)
	entries, err := r.ListOthers(context.Background(), "u1")
	require.NoError(t, err)

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"doc-alan", "doc-pending"}, ids)
}

func TestActorRegistryByID(t *testing.T) {
	r := loadRegistry(t)
	e, err := r.ByID(context.Background(), "doc-alan")
	require.NoError(t, err)
	assert.Equal(t, "alan", e.Label())

	_, err = r.ByID(context.Background(), "missing")
	assert.ErrorIs(t, err, directory.ErrNotFound)
}

func TestActorRegistryRejectsInvalidUID(t *testing.T) {
	r := memory.NewActorRegistry()
	assert.Error(t, r.Save(directory.Entry{ID: "x", UID: "a_b"}, ""))
	assert.Error(t, r.Save(directory.Entry{UID: "u1"}, ""))
}

func TestLoadFixturesMissingFile(t *testing.T) {
	n, err := memory.NewActorRegistry().LoadFixtures(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
