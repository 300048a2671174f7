// Package config provides the configuration schema, loader, and lemmatizer
// registry for the callmark service and CLI.
package config

import (
	"math"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr       = ":8080"
	DefaultFuzzyThreshold   = 0.85
	DefaultKeywordOverlap   = 0.70
	DefaultSemanticMinWords = 3
	DefaultCacheLimit       = 1000
	DefaultWorkers          = 4
	DefaultMergePause       = 1.0
	DefaultDebounce         = 100 * time.Millisecond
	DefaultStorePath        = "callmark.db"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Analyzer     AnalyzerConfig     `yaml:"analyzer"`
	Morphology   MorphologyConfig   `yaml:"morphology"`
	Dictionaries DictionariesConfig `yaml:"dictionaries"`
	Inbox        InboxConfig        `yaml:"inbox"`
	Store        StoreConfig        `yaml:"store"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AnalyzerConfig tunes the matcher and the analysis caches.
type AnalyzerConfig struct {
	// FuzzyThreshold is the minimum partial-ratio score for a semantic match.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// KeywordOverlap is the minimum share of phrase keywords that must occur
	// in the text before fuzzy scoring is attempted.
	KeywordOverlap float64 `yaml:"keyword_overlap"`

	// SemanticMinWords is the minimum phrase length in words for the
	// semantic tier.
	SemanticMinWords int `yaml:"semantic_min_words"`

	// CacheLimit bounds the analysis result cache.
	CacheLimit int `yaml:"cache_limit"`

	// NormalizerCacheLimit bounds the word and phrase lemma caches.
	NormalizerCacheLimit int `yaml:"normalizer_cache_limit"`

	// Workers is the batch worker pool size.
	Workers int `yaml:"workers"`

	// MergePause is the maximum pause in seconds between same-speaker
	// segments that are joined into one utterance. Negative disables merging.
	MergePause float64 `yaml:"merge_pause"`
}

// MaxPause returns the pause threshold for joining same-speaker segments.
// A negative MergePause yields negative infinity so nothing is joined.
func (a AnalyzerConfig) MaxPause() float64 {
	if a.MergePause < 0 {
		return math.Inf(-1)
	}
	return a.MergePause
}

// MorphologyConfig selects the lemmatizer. The Name field is used to look up
// the constructor in the [Registry].
type MorphologyConfig struct {
	// Name selects the registered lemmatizer ("none", "steos", "snowball").
	Name string `yaml:"name"`

	// Options holds lemmatizer-specific values, e.g. "dict_path" for steos or
	// "language" for snowball.
	Options map[string]any `yaml:"options"`

	// Fallback is asked for words the lemmatizer cannot resolve.
	Fallback *MorphologyConfig `yaml:"fallback"`
}

// DictionariesConfig locates the dictionary file.
type DictionariesConfig struct {
	// Path is the YAML dictionary file.
	Path string `yaml:"path"`

	// Watch enables hot reload when the file changes.
	Watch bool `yaml:"watch"`

	// Debounce delays reloads until writes settle.
	Debounce time.Duration `yaml:"debounce"`
}

// InboxConfig configures the drop-directory job processor. An empty Dir
// disables the inbox.
type InboxConfig struct {
	Dir          string `yaml:"dir"`
	ProcessedDir string `yaml:"processed_dir"`
	Workers      int    `yaml:"workers"`
}

// StoreConfig configures the embedded result store.
type StoreConfig struct {
	// Path is the bbolt database file.
	Path string `yaml:"path"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	a := &cfg.Analyzer
	if a.FuzzyThreshold == 0 {
		a.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if a.KeywordOverlap == 0 {
		a.KeywordOverlap = DefaultKeywordOverlap
	}
	if a.SemanticMinWords == 0 {
		a.SemanticMinWords = DefaultSemanticMinWords
	}
	if a.CacheLimit == 0 {
		a.CacheLimit = DefaultCacheLimit
	}
	if a.NormalizerCacheLimit == 0 {
		a.NormalizerCacheLimit = DefaultCacheLimit
	}
	if a.Workers == 0 {
		a.Workers = DefaultWorkers
	}
	if a.MergePause == 0 {
		a.MergePause = DefaultMergePause
	}
	if cfg.Morphology.Name == "" {
		cfg.Morphology.Name = "none"
	}
	if cfg.Dictionaries.Debounce == 0 {
		cfg.Dictionaries.Debounce = DefaultDebounce
	}
	if cfg.Inbox.Workers == 0 {
		cfg.Inbox.Workers = DefaultWorkers
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
