package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "actors.json")
	data := `[
		{"id": "doc-ada", "uid": "u1", "name": "Ada", "token": "t1"},
		{"id": "doc-alan", "uid": "u2", "display_name": "alan", "token": "t2"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ACTORS_FIXTURES", path)
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"dmctl"}, args...))
	return out.String(), err
}

func TestKeyCommand(t *testing.T) {
	out, err := run(t, "key", "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1_u2\n", out)

	_, err = run(t, "key", "u1")
	assert.Error(t, err)
	_, err = run(t, "key", "u1", "u1")
	assert.Error(t, err)
}

func TestContactsCommand(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "--token", "t1", "contacts")
	require.NoError(t, err)
	assert.Contains(t, out, "doc-alan")
	assert.NotContains(t, out, "doc-ada")
}

func TestSendCommand(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "--token", "t1", "send", "--to", "doc-alan", "hello", "there")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	assert.Equal(t, "u1_u2", fields[1])

	_, err = run(t, "--token", "t1", "send", "--to", "doc-alan", "   ")
	assert.ErrorContains(t, err, "text")
}

func TestCommandsNeedKnownToken(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "list")
	assert.ErrorContains(t, err, "--token is required")
	_, err = run(t, "--token", "nope", "list")
	assert.ErrorContains(t, err, "token not recognised")
}

func TestEraseNeedsConfirmation(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "--token", "t1", "erase", "u1_u2")
	assert.ErrorContains(t, err, "confirmation")

	out, err := run(t, "--token", "t1", "erase", "--confirm", "u1_u2", "u1_u2")
	require.NoError(t, err)
	assert.Equal(t, "deleted 0 of 0 messages\n", out)
}
