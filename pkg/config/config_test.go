package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisco/ticketlearn/pkg/errors"
)

func withKeys(t *testing.T) {
	t.Helper()
	t.Setenv("TICKET_API_KEY", "tk-key")
	t.Setenv("ANTHROPIC_API_KEY", "an-key")
}

func TestLoadDefaults(t *testing.T) {
	withKeys(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "cs@unisco.com", cfg.Staff.Email)
	assert.Equal(t, 200, cfg.Run.MaxTickets)
	assert.Equal(t, 3, cfg.Run.Concurrency)
	assert.Equal(t, 5, cfg.Run.Epochs)
	assert.Equal(t, "tk-key", cfg.API.Key)
}

func TestLoadYAMLFile(t *testing.T) {
	withKeys(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
staff:
  id: "7"
  email: agent@unisco.com
  name: Agent Seven
run:
  max_tickets: 50
  batch_size: 10
  concurrency: 5
  epochs: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "agent@unisco.com", cfg.Staff.Email)
	assert.Equal(t, 50, cfg.Run.MaxTickets)
	assert.Equal(t, 5, cfg.Run.Concurrency)
}

func TestEnvOverridesFile(t *testing.T) {
	withKeys(t)
	t.Setenv("MAX_TICKETS", "13")
	t.Setenv("TICKET_STAFF_EMAIL", "env@unisco.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 13, cfg.Run.MaxTickets)
	assert.Equal(t, "env@unisco.com", cfg.Staff.Email)
}

func TestValidation(t *testing.T) {
	t.Run("missing api key is fatal", func(t *testing.T) {
		t.Setenv("TICKET_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "an-key")

		_, err := Load("")
		require.Error(t, err)
		assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))
	})

	t.Run("bad staff email rejected", func(t *testing.T) {
		withKeys(t)
		t.Setenv("TICKET_STAFF_EMAIL", "not-an-email")

		_, err := Load("")
		require.Error(t, err)
		assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))
	})

	t.Run("concurrency ceiling bounded", func(t *testing.T) {
		withKeys(t)
		cfg := Default()
		cfg.API.Key = "k"
		cfg.LLM.APIKey = "k"
		cfg.Run.Concurrency = 100

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Concurrency")
	})
}

func TestLoadMalformedFile(t *testing.T) {
	withKeys(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
}
