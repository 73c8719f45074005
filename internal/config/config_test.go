package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "openai", cfg.Target.Provider)
	assert.Equal(t, 10*time.Second, cfg.Target.Connect.ConnectTimeout)
	assert.Equal(t, 3, cfg.Target.Connect.MaxRetries)

	assert.Equal(t, 256, cfg.Request.MaxTokens)
	assert.True(t, cfg.Request.Stream)

	assert.Equal(t, 1, cfg.Run.Concurrent)
	assert.Equal(t, 8, cfg.Run.MaxWorkers)

	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.FileOutput)
}

func newTestFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	fs := newTestFlagSet(t,
		"--url", "https://api.example.com/v1/chat/completions",
		"--model", "gpt-4o-mini",
		"--concurrent", "16",
		"--max-tokens", "512",
		"--stream=false",
	)

	cfg, err := Load(fs, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1/chat/completions", cfg.Target.URL)
	assert.Equal(t, "gpt-4o-mini", cfg.Target.Model)
	assert.Equal(t, 16, cfg.Run.Concurrent)
	assert.Equal(t, 512, cfg.Request.MaxTokens)
	assert.False(t, cfg.Request.Stream)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loadforge.yaml")
	contents := `
target:
  url: http://localhost:8080/v1/chat/completions
  model: llama3
run:
  concurrent: 4
  rounds: 2
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	fs := newTestFlagSet(t, "--config", path)
	cfg, err := Load(fs, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/v1/chat/completions", cfg.Target.URL)
	assert.Equal(t, "llama3", cfg.Target.Model)
	assert.Equal(t, 4, cfg.Run.Concurrent)
	assert.Equal(t, 2, cfg.Run.Rounds)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default-ish config",
			mutate:  func(c *Config) { c.Target.URL = "http://x"; c.Target.Model = "m"; c.Dataset.Path = "prompts.txt" },
			wantErr: false,
		},
		{name: "missing url", mutate: func(c *Config) { c.Target.Model = "m"; c.Dataset.Path = "p" }, wantErr: true},
		{name: "missing model", mutate: func(c *Config) { c.Target.URL = "http://x"; c.Dataset.Path = "p" }, wantErr: true},
		{name: "missing dataset is allowed", mutate: func(c *Config) { c.Target.URL = "http://x"; c.Target.Model = "m" }, wantErr: false},
		{
			name: "zero concurrency",
			mutate: func(c *Config) {
				c.Target.URL = "http://x"
				c.Target.Model = "m"
				c.Dataset.Path = "p"
				c.Run.Concurrent = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
