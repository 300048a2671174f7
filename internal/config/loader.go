package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidMorphologyNames lists the built-in lemmatizer names.
// Used by [Validate] to warn about unrecognised names.
var ValidMorphologyNames = []string{"none", "steos", "snowball"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	a := cfg.Analyzer
	if a.FuzzyThreshold < 0 || a.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("analyzer.fuzzy_threshold %.2f is out of range [0, 1]", a.FuzzyThreshold))
	}
	if a.KeywordOverlap < 0 || a.KeywordOverlap > 1 {
		errs = append(errs, fmt.Errorf("analyzer.keyword_overlap %.2f is out of range [0, 1]", a.KeywordOverlap))
	}
	if a.SemanticMinWords < 0 {
		errs = append(errs, fmt.Errorf("analyzer.semantic_min_words %d must not be negative", a.SemanticMinWords))
	}
	if a.CacheLimit < 0 {
		errs = append(errs, fmt.Errorf("analyzer.cache_limit %d must not be negative", a.CacheLimit))
	}
	if a.NormalizerCacheLimit < 0 {
		errs = append(errs, fmt.Errorf("analyzer.normalizer_cache_limit %d must not be negative", a.NormalizerCacheLimit))
	}
	if a.Workers < 0 {
		errs = append(errs, fmt.Errorf("analyzer.workers %d must not be negative", a.Workers))
	}

	prefix := "morphology"
	for mc := &cfg.Morphology; mc != nil; mc = mc.Fallback {
		if mc.Name == "" && prefix != "morphology" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		prefix += ".fallback"
		if mc.Name == "" {
			continue
		}
		if !slices.Contains(ValidMorphologyNames, mc.Name) {
			slog.Warn("unknown morphology name; may be a typo or a custom lemmatizer",
				"name", mc.Name,
				"known", ValidMorphologyNames,
			)
		}
	}

	if cfg.Dictionaries.Watch && cfg.Dictionaries.Path == "" {
		errs = append(errs, errors.New("dictionaries.watch requires dictionaries.path"))
	}
	if cfg.Dictionaries.Debounce < 0 {
		errs = append(errs, fmt.Errorf("dictionaries.debounce %s must not be negative", cfg.Dictionaries.Debounce))
	}

	if cfg.Inbox.Dir != "" {
		if cfg.Dictionaries.Path == "" {
			errs = append(errs, errors.New("inbox.dir requires dictionaries.path"))
		}
		if cfg.Inbox.ProcessedDir == cfg.Inbox.Dir {
			errs = append(errs, errors.New("inbox.processed_dir must differ from inbox.dir"))
		}
	}
	if cfg.Inbox.Workers < 0 {
		errs = append(errs, fmt.Errorf("inbox.workers %d must not be negative", cfg.Inbox.Workers))
	}

	return errors.Join(errs...)
}
