package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/dsops-rotator/internal/config"
)

func TestRootCommand(t *testing.T) {
	cfg, _ := keyringConfig(t)
	seed(t, cfg, "db")

	shared := &config.Config{}
	root := NewRootCommand(shared, "test")

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfg.Path, "--no-color", "status", "--secret-id", "db"})
	require.NoError(t, root.Execute())

	assert.Equal(t, cfg.Path, shared.Path)
	assert.NotNil(t, shared.Logger)
	assert.Contains(t, out.String(), "CURRENT")
}

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(&config.Config{}, "test")
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"handle", "event", "lambda", "serve", "rotate", "start", "status", "seed", "doctor", "completion"} {
		assert.Contains(t, names, want)
	}
}

func TestCompletionCommand(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(&config.Config{}, "test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "dsops-rotator")

	root.SetArgs([]string{"completion", "tcsh"})
	assert.Error(t, root.Execute())
}
