package config

import "time"

// Config holds all configuration for a loadforge run, assembled from
// defaults, an optional YAML file and command-line flags (flags win).
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Target  TargetConfig  `yaml:"target"`
	Request RequestConfig `yaml:"request"`
	Dataset DatasetConfig `yaml:"dataset"`
	Run     RunConfig     `yaml:"run"`
	Output  OutputConfig  `yaml:"output"`
	Debug   DebugConfig   `yaml:"debug"`
}

// TargetConfig describes the chat-completion endpoint under test.
type TargetConfig struct {
	URL        string        `yaml:"url"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	Provider   string        `yaml:"provider"` // adapter name, e.g. "openai"
	Connect    TransportConfig `yaml:"transport"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

// TransportConfig tunes the pooled HTTP client and its retry policy.
type TransportConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

// RateLimitConfig composes a per-second and a per-minute ceiling; the
// stricter of the two governs dispatch (spec: stricter-wins).
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
}

// RequestConfig holds the OpenAI-compatible chat-completion request body
// fields applied to every generated request.
type RequestConfig struct {
	MaxTokens        int      `yaml:"max_tokens"`
	Temperature      float64  `yaml:"temperature"`
	TopP             float64  `yaml:"top_p"`
	FrequencyPenalty float64  `yaml:"frequency_penalty"`
	PresencePenalty  float64  `yaml:"presence_penalty"`
	Stop             []string `yaml:"stop"`
	System           string   `yaml:"system"`
	Stream           bool     `yaml:"stream"`
}

// DatasetConfig controls how prompts are read from the line-oriented
// dataset file.
type DatasetConfig struct {
	Path        string `yaml:"path"`
	MaxExamples int    `yaml:"max_examples"`
	SkipLines   int    `yaml:"skip_lines"`
	LinePrefix  string `yaml:"line_prefix"`
	Shuffle     bool   `yaml:"shuffle"`
	Limit       int    `yaml:"limit"`
}

// RunConfig controls batch shape and worker concurrency.
type RunConfig struct {
	Concurrent       int `yaml:"concurrent"`
	Number           int `yaml:"number"`
	Rounds           int `yaml:"rounds"`
	MaxWorkers       int `yaml:"max_workers"`
	WarmupIterations int `yaml:"warmup_iterations"`
}

// OutputConfig controls where and how results are written.
type OutputConfig struct {
	Path        string `yaml:"path"`
	Format      string `yaml:"format"` // json (default), csv, xml
	SaveResults bool   `yaml:"save_results"`
}

// DebugConfig holds developer/diagnostic toggles.
type DebugConfig struct {
	Debug   bool `yaml:"debug"`
	DryRun  bool `yaml:"dry_run"`
	Verbose bool `yaml:"verbose"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Theme      string `yaml:"theme"`
	FileOutput bool   `yaml:"file_output"`
	LogDir     string `yaml:"log_dir"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	PrettyLogs bool   `yaml:"pretty_logs"`
}
