package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskforge/internal/apperr"
)

func TestRootCmd(t *testing.T) {
	viper.Reset()

	b := bytes.NewBufferString("")
	rootCmd.SetOut(b)
	rootCmd.SetErr(b)
	rootCmd.SetArgs([]string{"--help"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	assert.NoError(t, err)

	output := b.String()
	assert.Contains(t, output, "Turn requirement documents into dependency-ordered task graphs")
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "Available Commands:")
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "0.1.0", GetVersion())
	assert.Equal(t, GetVersion(), rootCmd.Version)
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{
		"parse-prd", "expand", "analyze-complexity", "complexity-report",
		"update-task", "update-subtask", "scope-up", "scope-down",
		"add-dependency", "remove-dependency", "validate-dependencies",
		"search", "context", "list", "show", "history", "telemetry", "mcp",
	}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "%s must be registered on root", name)
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "verbose", "quiet", "json", "scope"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "s", rootCmd.PersistentFlags().Lookup("scope").Shorthand)
}

func TestScopeCommandsShareFlags(t *testing.T) {
	for _, name := range []string{"scope-up", "scope-down"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.NotNil(t, c.Flags().Lookup("ids"), name)
		f := c.Flags().Lookup("strength")
		require.NotNil(t, f, name)
		assert.Equal(t, "regular", f.DefValue)
	}
}

func TestReadInput(t *testing.T) {
	t.Run("stdin", func(t *testing.T) {
		text, err := readInput("-", strings.NewReader("# PRD\nBuild auth"))
		require.NoError(t, err)
		assert.Equal(t, "# PRD\nBuild auth", text)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prd.md")
		require.NoError(t, os.WriteFile(path, []byte("Build billing"), 0o644))
		text, err := readInput(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "Build billing", text)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readInput(filepath.Join(t.TempDir(), "nope.md"), nil)
		assert.Error(t, err)
	})
}

func TestScopeFlag_Trims(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("scope", "  backend ")
	assert.Equal(t, "backend", scopeFlag())
}

func TestNewLogger_Level(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	var buf bytes.Buffer
	viper.Set("log.level", "info")
	logger := newLogger(&buf)
	assert.False(t, logger.Enabled(t.Context(), slog.LevelDebug))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelInfo))

	viper.Set("verbose", true)
	logger = newLogger(&buf)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestEmit_ErrorIsReported(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	err := emit(nil, apperr.Validation("getTask", "invalid task id %q", "x"), nil)
	assert.ErrorIs(t, err, errReported)

	rendered := false
	err = emit("ok", nil, func() string { rendered = true; return "" })
	assert.NoError(t, err)
	assert.True(t, rendered)
}

func TestNewMCPServer(t *testing.T) {
	assert.NotNil(t, newMCPServer(nil))
}
