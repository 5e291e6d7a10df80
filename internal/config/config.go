// Package config holds the pipeline options and decision thresholds.
// Configuration errors fail fast before any processing: a bad threshold
// would silently invalidate every verdict in the batch.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stackscout/scout/internal/stability"
)

// Options are the recognized pipeline options
type Options struct {
	// SkipLLM bypasses the external analyst and substitutes a
	// deterministic built-in analysis, so stages 1, 2, 4, and 5 can be
	// exercised end-to-end without network access.
	SkipLLM bool `yaml:"skip_llm"`

	// MaxLLMItems caps enrichment calls per run. 0 means no cap.
	MaxLLMItems int `yaml:"max_llm_items"`

	// UseQuickCheck enables the pre-enrichment stability short-circuit.
	UseQuickCheck bool `yaml:"use_quick_check"`

	// Debug enables verbose per-item logging.
	Debug bool `yaml:"debug"`

	// BatchTimeout bounds a whole invocation. 0 means no timeout.
	BatchTimeout time.Duration `yaml:"batch_timeout"`

	// Thresholds are the stability verdict thresholds.
	Thresholds stability.Thresholds `yaml:"thresholds"`
}

// Default returns the reference configuration
func Default() Options {
	return Options{
		MaxLLMItems:   10,
		UseQuickCheck: true,
		Thresholds:    stability.DefaultThresholds(),
	}
}

// Validate rejects configurations that would corrupt every verdict
func (o *Options) Validate() error {
	if o.MaxLLMItems < 0 {
		return fmt.Errorf("max_llm_items cannot be negative (got %d)", o.MaxLLMItems)
	}
	if o.BatchTimeout < 0 {
		return fmt.Errorf("batch_timeout cannot be negative (got %v)", o.BatchTimeout)
	}
	if err := o.Thresholds.Validate(); err != nil {
		return err
	}
	return nil
}

// UnmarshalYAML decodes options on top of the current values, so absent
// keys keep their defaults. batch_timeout accepts Go duration strings
// ("30s", "2m"), which yaml cannot decode into time.Duration on its own.
func (o *Options) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		SkipLLM       bool                 `yaml:"skip_llm"`
		MaxLLMItems   int                  `yaml:"max_llm_items"`
		UseQuickCheck bool                 `yaml:"use_quick_check"`
		Debug         bool                 `yaml:"debug"`
		BatchTimeout  string               `yaml:"batch_timeout"`
		Thresholds    stability.Thresholds `yaml:"thresholds"`
	}{
		SkipLLM:       o.SkipLLM,
		MaxLLMItems:   o.MaxLLMItems,
		UseQuickCheck: o.UseQuickCheck,
		Debug:         o.Debug,
		Thresholds:    o.Thresholds,
	}
	if o.BatchTimeout != 0 {
		raw.BatchTimeout = o.BatchTimeout.String()
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	o.SkipLLM = raw.SkipLLM
	o.MaxLLMItems = raw.MaxLLMItems
	o.UseQuickCheck = raw.UseQuickCheck
	o.Debug = raw.Debug
	o.Thresholds = raw.Thresholds
	if raw.BatchTimeout == "" {
		o.BatchTimeout = 0
		return nil
	}
	d, err := time.ParseDuration(raw.BatchTimeout)
	if err != nil {
		return fmt.Errorf("batch_timeout: %w", err)
	}
	o.BatchTimeout = d
	return nil
}

// Load reads options from a YAML file, applying defaults for absent keys
func Load(path string) (Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return opts, nil
}
