package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptledger/PromptLedger/internal/config"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeedFile(t *testing.T) {
	t.Run("bundled file", func(t *testing.T) {
		entries, err := LoadSeedFile(filepath.Join("..", "..", "configs", "models.yaml"))
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, "openai", entries[0].Provider)
		assert.Equal(t, "gpt-4o-mini", entries[0].ModelName)
		require.NotNil(t, entries[0].MaxTokens)
		assert.Equal(t, 128000, *entries[0].MaxTokens)
	})

	t.Run("optional fields", func(t *testing.T) {
		path := writeFile(t, "models:\n  - provider: echo\n    model_name: echo-1\n")
		entries, err := LoadSeedFile(path)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Nil(t, entries[0].MaxTokens)
		assert.False(t, entries[0].SupportsStreaming)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSeedFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("empty list", func(t *testing.T) {
		_, err := LoadSeedFile(writeFile(t, "models: []\n"))
		assert.ErrorContains(t, err, "lists no models")
	})
}

func TestCommands(t *testing.T) {
	configErr := errors.New("DATABASE_URL is unreachable")
	newRoot := func(args ...string) (*bytes.Buffer, error) {
		root := newRootCommand(&RootOptions{
			loadConfig: func() (*config.Config, error) { return nil, configErr },
		})

		buf := &bytes.Buffer{}
		root.SetOut(buf)
		root.SetErr(buf)
		root.SetArgs(args)
		return buf, root.Execute()
	}

	t.Run("steps rejects a non-integer before connecting", func(t *testing.T) {
		_, err := newRoot("migrate", "steps", "abc")
		assert.ErrorContains(t, err, "non-zero integer")
	})

	t.Run("steps rejects zero", func(t *testing.T) {
		_, err := newRoot("migrate", "steps", "0")
		assert.ErrorContains(t, err, "non-zero integer")
	})

	t.Run("force requires a version", func(t *testing.T) {
		_, err := newRoot("migrate", "force")
		assert.Error(t, err)
	})

	t.Run("configuration errors surface", func(t *testing.T) {
		_, err := newRoot("migrate", "up")
		assert.ErrorIs(t, err, configErr)
	})

	t.Run("seed with an unreadable file fails before connecting", func(t *testing.T) {
		_, err := newRoot("seed-models", "--file", filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, configErr)
	})

	t.Run("seed with a valid file reaches configuration", func(t *testing.T) {
		path := writeFile(t, "models:\n  - provider: echo\n    model_name: echo-1\n")
		_, err := newRoot("seed-models", "-f", path)
		assert.ErrorIs(t, err, configErr)
	})
}
