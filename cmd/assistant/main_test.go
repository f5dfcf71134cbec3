package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/abdhe/code-assistant/pkg/config"
)

// resolve runs a command carrying the serve flags and returns the config it
// resolved.
func resolve(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	parsed := config.Default()
	bs := serveBindings(&parsed)

	var got config.Config
	cmd := &cli.Command{
		Name:  "test",
		Flags: flagsOf(bs),
		Action: func(_ context.Context, cmd *cli.Command) error {
			var err error
			got, err = loadConfig(cmd, bs, &parsed)
			return err
		},
	}
	err := cmd.Run(context.Background(), append([]string{"test"}, args...))
	return got, err
}

func TestConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  name: file/model
server:
  port: 7000
  grpc_port: 7001
generation:
  timeout: 30s
`), 0o600))

	t.Setenv("PORT", "8000")
	t.Setenv("MODEL_NAME", "env/model")

	cfg, err := resolve(t, "--config", path, "--model", "flag/model")
	require.NoError(t, err)

	assert.Equal(t, "flag/model", cfg.Model.Name, "flag beats env and file")
	assert.Equal(t, 8000, cfg.Server.Port, "env beats file")
	assert.Equal(t, 7001, cfg.Server.GRPCPort, "file beats default")
	assert.Equal(t, 30*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 2048, cfg.Generation.MaxLength, "default kept")
}

func TestConfigOriginalEnvNames(t *testing.T) {
	t.Setenv("HUGGINGFACE_API_TOKEN", "hf_secret")
	t.Setenv("MAX_LENGTH", "4096")
	t.Setenv("TEMPERATURE", "0.2")
	t.Setenv("DEBUG", "true")

	cfg, err := resolve(t)
	require.NoError(t, err)
	assert.Equal(t, "hf_secret", cfg.Model.APIToken)
	assert.Equal(t, 4096, cfg.Generation.MaxLength)
	assert.InDelta(t, 0.2, cfg.Generation.Temperature, 1e-9)
	assert.Equal(t, "debug", cfg.LogLevel())
}

func TestConfigValidationFails(t *testing.T) {
	_, err := resolve(t, "--temperature", "5")
	require.ErrorContains(t, err, "temperature")
}

func TestPromptCommand(t *testing.T) {
	var out bytes.Buffer
	app := &cli.Command{Name: "assistant", Writer: &out, Commands: []*cli.Command{promptCmd()}}

	err := app.Run(context.Background(), []string{"assistant", "prompt", "--task", "explain", "--language", "go", "x := 1"})
	require.NoError(t, err)
	assert.Equal(t, "<|user|>\nExplain this go code step by step:\n```go\nx := 1\n```\n<|assistant|>\n", out.String())
}

func TestPromptCommandRejectsUnknownTask(t *testing.T) {
	app := &cli.Command{Name: "assistant", Writer: &bytes.Buffer{}, Commands: []*cli.Command{promptCmd()}}
	err := app.Run(context.Background(), []string{"assistant", "prompt", "--task", "refactor", "x"})
	require.ErrorContains(t, err, "unknown task")
}

func TestAskRejectsOutOfRangeMaxLength(t *testing.T) {
	app := &cli.Command{Name: "assistant", Writer: &bytes.Buffer{}, Commands: []*cli.Command{askCmd()}}
	err := app.Run(context.Background(), []string{"assistant", "ask", "--addr", "127.0.0.1:1", "--max-length", "4294967297", "x"})
	require.ErrorContains(t, err, "max-length 4294967297 is out of range")

	n, err := int32Of("max-length", 512)
	require.NoError(t, err)
	assert.Equal(t, int32(512), *n)
}
