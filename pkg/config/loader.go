package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors the tagmark.yaml file structure. Durations are strings
// ("30s", "24h") and are parsed during resolution; invalid values fall back
// to defaults with a warning.
type yamlConfig struct {
	Server            *serverYAML             `yaml:"server"`
	VideoSource       *videoSourceYAML        `yaml:"videoSource"`
	BookmarkStore     *bookmarkStoreYAML      `yaml:"bookmarkStore"`
	LLM               *llmYAML                `yaml:"llm"`
	Tagging           *taggingYAML            `yaml:"tagging"`
	Breaker           map[string]breakerYAML  `yaml:"breaker"`
	Retry             map[string]retryYAML    `yaml:"retry"`
	Scheduler         *schedulerYAML          `yaml:"scheduler"`
	UnsortedProcessor *unsortedProcessorYAML  `yaml:"unsortedProcessor"`
	Pipeline          *pipelineYAML           `yaml:"pipeline"`
}

type serverYAML struct {
	Port            int    `yaml:"port"`
	ShutdownTimeout string `yaml:"shutdownTimeout"`
}

type videoSourceYAML struct {
	BaseURL  string `yaml:"baseUrl"`
	APIKey   string `yaml:"apiKey"`
	Timeout  string `yaml:"timeout"`
	PageSize int    `yaml:"pageSize"`
}

type bookmarkStoreYAML struct {
	BaseURL            string `yaml:"baseUrl"`
	Token              string `yaml:"token"`
	Timeout            string `yaml:"timeout"`
	FallbackContainer  string `yaml:"fallbackContainer"`
	PlaylistMappingTTL string `yaml:"playlistMappingTtl"`
	ContainerListTTL   string `yaml:"containerListTtl"`
	TagsTTL            string `yaml:"tagsTtl"`
}

type llmYAML struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"apiKey"`
	BaseURL     string   `yaml:"baseUrl"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"maxTokens"`
	Timeout     string   `yaml:"timeout"`
}

type taggingYAML struct {
	BlockedTags     string   `yaml:"blockedTags"`
	MaxTags         int      `yaml:"maxTags"`
	ConfidenceFloor *float64 `yaml:"confidenceFloor"`
}

type breakerYAML struct {
	Threshold      *float64 `yaml:"threshold"`
	WindowSize     int      `yaml:"windowSize"`
	OpenDwell      string   `yaml:"openDwell"`
	HalfOpenProbes int      `yaml:"halfOpenProbes"`
}

type retryYAML struct {
	MaxAttempts int      `yaml:"maxAttempts"`
	BaseWait    string   `yaml:"baseWait"`
	Multiplier  *float64 `yaml:"multiplier"`
}

type schedulerYAML struct {
	Enabled      bool   `yaml:"enabled"`
	FixedDelay   string `yaml:"fixedDelay"`
	InitialDelay string `yaml:"initialDelay"`
	PlaylistIDs  string `yaml:"playlistIds"`
}

type unsortedProcessorYAML struct {
	Enabled      bool   `yaml:"enabled"`
	FixedDelay   string `yaml:"fixedDelay"`
	InitialDelay string `yaml:"initialDelay"`
}

type pipelineYAML struct {
	RunDeadline string `yaml:"runDeadline"`
	EventBuffer int    `yaml:"eventBuffer"`
}

// Initialize loads, resolves, and validates configuration from path.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read the YAML file
//  2. Expand environment variables ({{.VAR}} template syntax)
//  3. Parse into the raw YAML structure
//  4. Resolve typed sections on top of built-in defaults
//  5. Validate the result
func Initialize(_ context.Context, path string) (*Config, error) {
	log := slog.With("config_file", path)
	log.Info("Initializing configuration")

	raw, err := loadYAML(path)
	if err != nil {
		return nil, NewLoadError(path, err)
	}

	cfg := resolve(raw)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized",
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"scheduler_enabled", cfg.Scheduler.Enabled,
		"unsorted_processor_enabled", cfg.UnsortedProcessor.Enabled)
	return cfg, nil
}

func loadYAML(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	data = expandEnv(data)

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &raw, nil
}

// expandEnv expands environment variables in YAML content using Go template
// syntax ({{.VAR_NAME}}), avoiding collision with literal $ in values.
// Missing variables expand to an empty string; a malformed template passes
// the content through unchanged so the YAML parser reports the real problem.
func expandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		if idx := strings.IndexByte(env, '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}
	return buf.Bytes()
}

// resolve builds the typed configuration from the raw YAML, applying
// built-in defaults for everything left unset.
func resolve(raw *yamlConfig) *Config {
	return &Config{
		Server:            resolveServer(raw.Server),
		VideoSource:       resolveVideoSource(raw.VideoSource),
		BookmarkStore:     resolveBookmarkStore(raw.BookmarkStore),
		LLM:               resolveLLM(raw.LLM),
		Tagging:           resolveTagging(raw.Tagging),
		Breakers:          resolveBreakers(raw.Breaker),
		Retries:           resolveRetries(raw.Retry),
		Scheduler:         resolveScheduler(raw.Scheduler),
		UnsortedProcessor: resolveUnsortedProcessor(raw.UnsortedProcessor),
		Pipeline:          resolvePipeline(raw.Pipeline),
	}
}

func resolveServer(y *serverYAML) *ServerConfig {
	cfg := DefaultServerConfig()
	if y == nil {
		return cfg
	}
	if y.Port > 0 {
		cfg.Port = y.Port
	}
	cfg.ShutdownTimeout = parseDuration("server.shutdownTimeout", y.ShutdownTimeout, cfg.ShutdownTimeout)
	return cfg
}

func resolveVideoSource(y *videoSourceYAML) *VideoSourceConfig {
	cfg := DefaultVideoSourceConfig()
	if y == nil {
		return cfg
	}
	if err := mergo.Merge(cfg, &VideoSourceConfig{BaseURL: y.BaseURL, APIKey: y.APIKey, PageSize: y.PageSize}, mergo.WithOverride); err != nil {
		slog.Warn("Failed to merge videoSource config, using defaults", "error", err)
	}
	cfg.Timeout = parseDuration("videoSource.timeout", y.Timeout, cfg.Timeout)
	return cfg
}

func resolveBookmarkStore(y *bookmarkStoreYAML) *BookmarkStoreConfig {
	cfg := DefaultBookmarkStoreConfig()
	if y == nil {
		return cfg
	}
	if err := mergo.Merge(cfg, &BookmarkStoreConfig{BaseURL: y.BaseURL, Token: y.Token, FallbackContainer: y.FallbackContainer}, mergo.WithOverride); err != nil {
		slog.Warn("Failed to merge bookmarkStore config, using defaults", "error", err)
	}
	cfg.Timeout = parseDuration("bookmarkStore.timeout", y.Timeout, cfg.Timeout)
	cfg.PlaylistMappingTTL = parseDuration("bookmarkStore.playlistMappingTtl", y.PlaylistMappingTTL, cfg.PlaylistMappingTTL)
	cfg.ContainerListTTL = parseDuration("bookmarkStore.containerListTtl", y.ContainerListTTL, cfg.ContainerListTTL)
	cfg.TagsTTL = parseDuration("bookmarkStore.tagsTtl", y.TagsTTL, cfg.TagsTTL)
	return cfg
}

func resolveLLM(y *llmYAML) *LLMConfig {
	cfg := DefaultLLMConfig()
	if y == nil {
		return cfg
	}
	if y.Provider != "" {
		cfg.Provider = LLMProvider(strings.ToLower(strings.TrimSpace(y.Provider)))
	}
	if y.Model != "" {
		cfg.Model = y.Model
	}
	if y.APIKey != "" {
		cfg.APIKey = y.APIKey
	}
	if y.BaseURL != "" {
		cfg.BaseURL = y.BaseURL
	}
	if y.Temperature != nil {
		cfg.Temperature = *y.Temperature
	}
	if y.MaxTokens > 0 {
		cfg.MaxTokens = y.MaxTokens
	}
	cfg.Timeout = parseDuration("llm.timeout", y.Timeout, cfg.Timeout)
	return cfg
}

func resolveTagging(y *taggingYAML) *TaggingConfig {
	cfg := DefaultTaggingConfig()
	if y == nil {
		return cfg
	}
	cfg.BlockedTags = y.BlockedTags
	if y.MaxTags > 0 {
		cfg.MaxTags = y.MaxTags
	}
	if y.ConfidenceFloor != nil {
		cfg.ConfidenceFloor = *y.ConfidenceFloor
	}
	return cfg
}

func resolveBreakers(y map[string]breakerYAML) map[string]*BreakerConfig {
	out := make(map[string]*BreakerConfig, 3)
	for _, dep := range []string{DependencyVideoSource, DependencyBookmarkStore, DependencyLLM} {
		cfg := DefaultBreakerConfig()
		if b, ok := y[dep]; ok {
			if b.Threshold != nil {
				cfg.Threshold = *b.Threshold
			}
			if b.WindowSize > 0 {
				cfg.WindowSize = b.WindowSize
			}
			if b.HalfOpenProbes > 0 {
				cfg.HalfOpenProbes = b.HalfOpenProbes
			}
			cfg.OpenDwell = parseDuration("breaker."+dep+".openDwell", b.OpenDwell, cfg.OpenDwell)
		}
		out[dep] = cfg
	}
	return out
}

func resolveRetries(y map[string]retryYAML) map[string]*RetryConfig {
	out := make(map[string]*RetryConfig, 3)
	for _, dep := range []string{DependencyVideoSource, DependencyBookmarkStore, DependencyLLM} {
		cfg := DefaultRetryConfig(dep)
		if r, ok := y[dep]; ok {
			if r.MaxAttempts > 0 {
				cfg.MaxAttempts = r.MaxAttempts
			}
			if r.Multiplier != nil {
				cfg.Multiplier = *r.Multiplier
			}
			cfg.BaseWait = parseDuration("retry."+dep+".baseWait", r.BaseWait, cfg.BaseWait)
		}
		out[dep] = cfg
	}
	return out
}

func resolveScheduler(y *schedulerYAML) *SchedulerConfig {
	cfg := DefaultSchedulerConfig()
	if y == nil {
		return cfg
	}
	cfg.Enabled = y.Enabled
	cfg.FixedDelay = parseDuration("scheduler.fixedDelay", y.FixedDelay, cfg.FixedDelay)
	cfg.InitialDelay = parseDuration("scheduler.initialDelay", y.InitialDelay, cfg.InitialDelay)
	cfg.PlaylistIDs = splitCommaList(y.PlaylistIDs)
	return cfg
}

func resolveUnsortedProcessor(y *unsortedProcessorYAML) *UnsortedProcessorConfig {
	cfg := DefaultUnsortedProcessorConfig()
	if y == nil {
		return cfg
	}
	cfg.Enabled = y.Enabled
	cfg.FixedDelay = parseDuration("unsortedProcessor.fixedDelay", y.FixedDelay, cfg.FixedDelay)
	cfg.InitialDelay = parseDuration("unsortedProcessor.initialDelay", y.InitialDelay, cfg.InitialDelay)
	return cfg
}

func resolvePipeline(y *pipelineYAML) *PipelineConfig {
	cfg := DefaultPipelineConfig()
	if y == nil {
		return cfg
	}
	cfg.RunDeadline = parseDuration("pipeline.runDeadline", y.RunDeadline, cfg.RunDeadline)
	if y.EventBuffer > 0 {
		cfg.EventBuffer = y.EventBuffer
	}
	return cfg
}

// parseDuration parses a duration string, keeping the default (with a
// warning) when the value is empty or malformed.
func parseDuration(field, value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration in config, using default",
			"field", field,
			"value", value,
			"default", def,
			"error", err)
		return def
	}
	return d
}

// splitCommaList splits a comma-separated value into trimmed, non-empty
// entries.
func splitCommaList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
