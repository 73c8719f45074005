package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultFileWriteDelay = 150 * time.Millisecond // Small delay to ensure file write is complete
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			URL:      "http://localhost:11434/v1/chat/completions",
			Provider: "openai",
			Connect: TransportConfig{
				ConnectTimeout: 10 * time.Second,
				ReadTimeout:    120 * time.Second,
				MaxRetries:     3,
				RetryDelay:     500 * time.Millisecond,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 0, // 0 == unlimited
				RequestsPerMinute: 0,
			},
		},
		Request: RequestConfig{
			MaxTokens:   256,
			Temperature: 0.7,
			TopP:        1.0,
			Stream:      true,
		},
		Dataset: DatasetConfig{
			LinePrefix: "",
		},
		Run: RunConfig{
			Concurrent:       1,
			Number:           1,
			Rounds:           1,
			MaxWorkers:       8,
			WarmupIterations: 1,
		},
		Output: OutputConfig{
			Format: "json",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			FileOutput: true,
			LogDir:     "./logs",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			PrettyLogs: true,
		},
	}
}

// BindFlags registers the long-form CLI flag set onto fs, matching the
// viper keys used by Load.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("url", "", "target chat-completion endpoint")
	fs.String("model", "", "model name sent in each request")
	fs.String("api-key", "", "bearer token for the target endpoint")
	fs.String("provider", "openai", "provider adapter to use")

	fs.String("dataset", "", "path to the line-oriented prompt dataset")
	fs.Int("max-examples", 0, "maximum prompts to load (0 = no limit)")
	fs.Int("skip-lines", 0, "number of leading dataset lines to skip")
	fs.String("line-prefix", "", "prefix prepended to each prompt that does not already start with it")
	fs.Bool("dataset-shuffle", false, "shuffle loaded prompts before use")
	fs.Int("dataset-limit", 0, "cap the number of loaded prompts, applied after shuffle (0 = no limit)")

	fs.Int("concurrent", 1, "number of concurrent in-flight requests")
	fs.Int("number", 1, "number of requests per round")
	fs.Int("rounds", 1, "number of measured rounds (after warmup)")
	fs.Int("warmup-iterations", 1, "discarded warmup requests run before measured rounds")
	fs.Int("max-workers", 8, "maximum pooled connections to the target")

	fs.Int("max-tokens", 256, "max_tokens sent in each request")
	fs.Float64("temperature", 0.7, "temperature sent in each request")
	fs.Float64("top-p", 1.0, "top_p sent in each request")
	fs.Float64("frequency-penalty", 0, "frequency_penalty sent in each request")
	fs.Float64("presence-penalty", 0, "presence_penalty sent in each request")
	fs.StringSlice("stop", nil, "stop sequences sent in each request")
	fs.String("system", "", "system prompt prepended to each request")
	fs.Bool("stream", true, "use SSE streaming responses")

	fs.Duration("connect-timeout", 10*time.Second, "TCP+TLS connect timeout")
	fs.Duration("read-timeout", 120*time.Second, "read deadline for a whole response; also the per-request deadline")
	fs.Int("max-retries", 3, "transient transport error retry attempts")
	fs.Duration("retry-delay", 500*time.Millisecond, "fixed delay between retries")

	fs.Float64("requests-per-second", 0, "per-second rate ceiling (0 = unlimited)")
	fs.Float64("requests-per-minute", 0, "per-minute rate ceiling (0 = unlimited)")

	fs.String("output", "", "path to write the results file")
	fs.String("output-format", "json", "results file format: json, csv, xml")
	fs.Bool("save-results", false, "persist results to --output (default results/benchmark/<model>.<format>)")

	fs.Bool("debug", false, "enable the pprof server and log container detection at start")
	fs.Bool("dry-run", false, "print the plan without validating config or sending requests")
	fs.Bool("verbose", false, "live progress view on an interactive terminal; debug-log discarded stream chunks")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("config", "", "path to a YAML config file")
}

// Load loads configuration from defaults, an optional YAML file, and CLI
// flags (highest precedence), matching the teacher's viper-based
// precedence and hot-reload mechanism.
func Load(fs *pflag.FlagSet, onConfigChange func()) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("LOADFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	var configFile string
	if fs != nil {
		configFile, _ = fs.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("loadforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	applyFlagOverrides(cfg, v)

	if configFile != "" || v.ConfigFileUsed() != "" {
		v.WatchConfig()
		if onConfigChange != nil {
			v.OnConfigChange(func(e fsnotify.Event) {
				reloadMutex.Lock()
				defer reloadMutex.Unlock()

				now := time.Now()
				if now.Sub(lastReload) < 500*time.Millisecond {
					return
				}
				lastReload = now

				time.Sleep(DefaultFileWriteDelay)
				onConfigChange()
			})
		}
	}

	return cfg, nil
}

// applyFlagOverrides copies bound viper values onto the typed Config,
// letting CLI flags and environment variables win over file/defaults.
func applyFlagOverrides(cfg *Config, v *viper.Viper) {
	if s := v.GetString("url"); s != "" {
		cfg.Target.URL = s
	}
	if s := v.GetString("model"); s != "" {
		cfg.Target.Model = s
	}
	if s := v.GetString("api-key"); s != "" {
		cfg.Target.APIKey = s
	}
	if s := v.GetString("provider"); s != "" {
		cfg.Target.Provider = s
	}

	if s := v.GetString("dataset"); s != "" {
		cfg.Dataset.Path = s
	}
	if n := v.GetInt("max-examples"); n != 0 {
		cfg.Dataset.MaxExamples = n
	}
	cfg.Dataset.SkipLines = v.GetInt("skip-lines")
	cfg.Dataset.LinePrefix = v.GetString("line-prefix")
	cfg.Dataset.Shuffle = v.GetBool("dataset-shuffle")
	if n := v.GetInt("dataset-limit"); n != 0 {
		cfg.Dataset.Limit = n
	}

	if n := v.GetInt("concurrent"); n != 0 {
		cfg.Run.Concurrent = n
	}
	if n := v.GetInt("number"); n != 0 {
		cfg.Run.Number = n
	}
	if n := v.GetInt("rounds"); n != 0 {
		cfg.Run.Rounds = n
	}
	if n := v.GetInt("max-workers"); n != 0 {
		cfg.Run.MaxWorkers = n
	}
	if n := v.GetInt("warmup-iterations"); n != 0 {
		cfg.Run.WarmupIterations = n
	}

	if n := v.GetInt("max-tokens"); n != 0 {
		cfg.Request.MaxTokens = n
	}
	cfg.Request.Temperature = v.GetFloat64("temperature")
	cfg.Request.TopP = v.GetFloat64("top-p")
	cfg.Request.FrequencyPenalty = v.GetFloat64("frequency-penalty")
	cfg.Request.PresencePenalty = v.GetFloat64("presence-penalty")
	if stop := v.GetStringSlice("stop"); len(stop) > 0 {
		cfg.Request.Stop = stop
	}
	cfg.Request.System = v.GetString("system")
	cfg.Request.Stream = v.GetBool("stream")

	if d := v.GetDuration("connect-timeout"); d != 0 {
		cfg.Target.Connect.ConnectTimeout = d
	}
	if d := v.GetDuration("read-timeout"); d != 0 {
		cfg.Target.Connect.ReadTimeout = d
	}
	if n := v.GetInt("max-retries"); n != 0 {
		cfg.Target.Connect.MaxRetries = n
	}
	if d := v.GetDuration("retry-delay"); d != 0 {
		cfg.Target.Connect.RetryDelay = d
	}

	cfg.Target.RateLimit.RequestsPerSecond = v.GetFloat64("requests-per-second")
	cfg.Target.RateLimit.RequestsPerMinute = v.GetFloat64("requests-per-minute")

	if s := v.GetString("output"); s != "" {
		cfg.Output.Path = s
	}
	if s := v.GetString("output-format"); s != "" {
		cfg.Output.Format = s
	}
	cfg.Output.SaveResults = v.GetBool("save-results")

	cfg.Debug.Debug = v.GetBool("debug")
	cfg.Debug.DryRun = v.GetBool("dry-run")
	cfg.Debug.Verbose = v.GetBool("verbose")
	if s := v.GetString("log-level"); s != "" {
		cfg.Logging.Level = s
	}
}

// Validate checks invariants that the CLI flag parser can't enforce by
// itself (required fields, ranges).
func (c *Config) Validate() error {
	if c.Target.URL == "" {
		return fmt.Errorf("target url is required (--url)")
	}
	if c.Target.Model == "" {
		return fmt.Errorf("model is required (--model)")
	}
	if c.Run.Concurrent < 1 {
		return fmt.Errorf("concurrent must be >= 1")
	}
	if c.Run.MaxWorkers < 1 {
		return fmt.Errorf("max-workers must be >= 1")
	}
	if c.Target.Connect.MaxRetries < 0 {
		return fmt.Errorf("max-retries must be >= 0")
	}
	return nil
}
