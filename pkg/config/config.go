// Package config loads and validates the tagmark YAML configuration.
package config

import (
	"fmt"
	"time"
)

// Names of the three remote dependencies, used as keys in the breaker and
// retry configuration maps and as the service field of unavailability errors.
const (
	DependencyVideoSource   = "videoSource"
	DependencyBookmarkStore = "bookmarkStore"
	DependencyLLM           = "llm"
)

// LLMProvider selects the SDK used to reach the model.
type LLMProvider string

const (
	// LLMProviderOpenAI talks to any OpenAI-compatible endpoint.
	LLMProviderOpenAI LLMProvider = "openai"
	// LLMProviderAnthropic talks to the Anthropic Messages API.
	LLMProviderAnthropic LLMProvider = "anthropic"
)

// IsValid checks if the provider is recognized.
func (p LLMProvider) IsValid() bool {
	return p == LLMProviderOpenAI || p == LLMProviderAnthropic
}

// Config is the fully resolved application configuration returned by
// Initialize and passed by handle from the composition root.
type Config struct {
	Server            *ServerConfig
	VideoSource       *VideoSourceConfig
	BookmarkStore     *BookmarkStoreConfig
	LLM               *LLMConfig
	Tagging           *TaggingConfig
	Breakers          map[string]*BreakerConfig
	Retries           map[string]*RetryConfig
	Scheduler         *SchedulerConfig
	UnsortedProcessor *UnsortedProcessorConfig
	Pipeline          *PipelineConfig
}

// BreakerFor returns the breaker tuning for a dependency, falling back to
// defaults for unknown names.
func (c *Config) BreakerFor(dependency string) *BreakerConfig {
	if cfg, ok := c.Breakers[dependency]; ok {
		return cfg
	}
	return DefaultBreakerConfig()
}

// RetryFor returns the retry tuning for a dependency, falling back to
// defaults for unknown names.
func (c *Config) RetryFor(dependency string) *RetryConfig {
	if cfg, ok := c.Retries[dependency]; ok {
		return cfg
	}
	return DefaultRetryConfig(dependency)
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
	}
}

// VideoSourceConfig holds the video source API client settings.
type VideoSourceConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each HTTP attempt; exceeding it counts as one
	// retryable failure.
	Timeout  time.Duration
	PageSize int
}

// DefaultVideoSourceConfig returns the built-in video source defaults.
func DefaultVideoSourceConfig() *VideoSourceConfig {
	return &VideoSourceConfig{
		BaseURL:  "https://www.googleapis.com/youtube/v3",
		Timeout:  30 * time.Second,
		PageSize: 50,
	}
}

// BookmarkStoreConfig holds the bookmark store client settings plus the
// cache TTLs and selector fallback the store's service layer enforces.
type BookmarkStoreConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// FallbackContainer is the title used when the selector is uncertain;
	// it is auto-created when missing from the store.
	FallbackContainer  string
	PlaylistMappingTTL time.Duration
	ContainerListTTL   time.Duration
	TagsTTL            time.Duration
}

// DefaultBookmarkStoreConfig returns the built-in bookmark store defaults.
func DefaultBookmarkStoreConfig() *BookmarkStoreConfig {
	return &BookmarkStoreConfig{
		BaseURL:            "https://api.raindrop.io/rest/v1",
		Timeout:            30 * time.Second,
		FallbackContainer:  "Videos",
		PlaylistMappingTTL: 24 * time.Hour,
		ContainerListTTL:   1 * time.Hour,
		TagsTTL:            15 * time.Minute,
	}
}

// LLMConfig holds the language model client settings.
type LLMConfig struct {
	Provider LLMProvider
	Model    string
	APIKey   string
	// BaseURL overrides the provider's default endpoint (gateways, proxies).
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultLLMConfig returns the built-in LLM defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Provider:    LLMProviderOpenAI,
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
	}
}

// TaggingConfig holds tag-generation defaults applied when a request does
// not override them.
type TaggingConfig struct {
	// BlockedTags is the raw comma-separated blocklist; the tag generator
	// normalizes it. Empty disables blocklist filtering entirely.
	BlockedTags     string
	MaxTags         int
	ConfidenceFloor float64
}

// DefaultTaggingConfig returns the built-in tagging defaults.
func DefaultTaggingConfig() *TaggingConfig {
	return &TaggingConfig{
		MaxTags:         5,
		ConfidenceFloor: 0.5,
	}
}

// BreakerConfig tunes one dependency's circuit breaker.
type BreakerConfig struct {
	// Threshold is the failure ratio within the window that opens the breaker.
	Threshold float64
	// WindowSize is the rolling count of calls the ratio is computed over.
	WindowSize int
	// OpenDwell is how long the breaker stays open before probing.
	OpenDwell time.Duration
	// HalfOpenProbes is the number of trial calls permitted while half-open.
	HalfOpenProbes int
}

// DefaultBreakerConfig returns the breaker defaults shared by all dependencies.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Threshold:      0.5,
		WindowSize:     10,
		OpenDwell:      30 * time.Second,
		HalfOpenProbes: 3,
	}
}

// RetryConfig tunes one dependency's bounded retry.
type RetryConfig struct {
	MaxAttempts int
	BaseWait    time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns the retry defaults for a dependency. The LLM
// gets a smaller budget than the two stores.
func DefaultRetryConfig(dependency string) *RetryConfig {
	attempts := 3
	if dependency == DependencyLLM {
		attempts = 2
	}
	return &RetryConfig{
		MaxAttempts: attempts,
		BaseWait:    1 * time.Second,
		Multiplier:  2,
	}
}

// SchedulerConfig controls the periodic playlist trigger.
type SchedulerConfig struct {
	Enabled      bool
	FixedDelay   time.Duration
	InitialDelay time.Duration
	// PlaylistIDs are the playlists submitted each cycle, in order.
	PlaylistIDs []string
}

// DefaultSchedulerConfig returns the built-in scheduler defaults (disabled).
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		FixedDelay:   6 * time.Hour,
		InitialDelay: 1 * time.Minute,
	}
}

// UnsortedProcessorConfig controls the periodic unsorted-bookmark sweeper.
type UnsortedProcessorConfig struct {
	Enabled      bool
	FixedDelay   time.Duration
	InitialDelay time.Duration
}

// DefaultUnsortedProcessorConfig returns the built-in sweeper defaults
// (disabled).
func DefaultUnsortedProcessorConfig() *UnsortedProcessorConfig {
	return &UnsortedProcessorConfig{
		FixedDelay:   12 * time.Hour,
		InitialDelay: 5 * time.Minute,
	}
}

// PipelineConfig controls run execution.
type PipelineConfig struct {
	// RunDeadline bounds a single run end to end.
	RunDeadline time.Duration
	// EventBuffer is the progress channel capacity per run.
	EventBuffer int
}

// DefaultPipelineConfig returns the built-in pipeline defaults.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		RunDeadline: 1 * time.Hour,
		EventBuffer: 256,
	}
}

// validate performs cross-field validation on resolved configuration.
func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalidValue, cfg.Server.Port)
	}
	if !cfg.LLM.Provider.IsValid() {
		return fmt.Errorf("%w: llm.provider %q", ErrInvalidValue, cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("%w: llm.model", ErrMissingRequiredField)
	}
	if cfg.Tagging.MaxTags < 1 {
		return fmt.Errorf("%w: tagging.maxTags %d", ErrInvalidValue, cfg.Tagging.MaxTags)
	}
	if cfg.Tagging.ConfidenceFloor < 0 || cfg.Tagging.ConfidenceFloor > 1 {
		return fmt.Errorf("%w: tagging.confidenceFloor %v", ErrInvalidValue, cfg.Tagging.ConfidenceFloor)
	}
	if cfg.BookmarkStore.FallbackContainer == "" {
		return fmt.Errorf("%w: bookmarkStore.fallbackContainer", ErrMissingRequiredField)
	}
	for dep, b := range cfg.Breakers {
		if b.Threshold <= 0 || b.Threshold > 1 {
			return fmt.Errorf("%w: breaker.%s.threshold %v", ErrInvalidValue, dep, b.Threshold)
		}
		if b.WindowSize < 1 {
			return fmt.Errorf("%w: breaker.%s.windowSize %d", ErrInvalidValue, dep, b.WindowSize)
		}
		if b.HalfOpenProbes < 1 {
			return fmt.Errorf("%w: breaker.%s.halfOpenProbes %d", ErrInvalidValue, dep, b.HalfOpenProbes)
		}
	}
	for dep, r := range cfg.Retries {
		if r.MaxAttempts < 1 {
			return fmt.Errorf("%w: retry.%s.maxAttempts %d", ErrInvalidValue, dep, r.MaxAttempts)
		}
		if r.Multiplier < 1 {
			return fmt.Errorf("%w: retry.%s.multiplier %v", ErrInvalidValue, dep, r.Multiplier)
		}
	}
	if cfg.Scheduler.Enabled && len(cfg.Scheduler.PlaylistIDs) == 0 {
		return fmt.Errorf("%w: scheduler.playlistIds (scheduler enabled)", ErrMissingRequiredField)
	}
	if cfg.Pipeline.EventBuffer < 1 {
		return fmt.Errorf("%w: pipeline.eventBuffer %d", ErrInvalidValue, cfg.Pipeline.EventBuffer)
	}
	return nil
}
