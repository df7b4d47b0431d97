package report

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/condlab/chainmatch/pkg/match"
)

// ApproxConfig enables and tunes approximate matching in a report run.
type ApproxConfig struct {
	Enabled   bool    `yaml:"enabled"`
	TopK      int     `yaml:"topk"`
	Threshold float64 `yaml:"threshold"`
	Prefilter int     `yaml:"prefilter"`
}

// Config describes one report run. It mirrors the CLI flags so a run can
// be captured in a session file and replayed.
type Config struct {
	Logs        string       `yaml:"logs"`
	Meta        string       `yaml:"meta"`
	Out         string       `yaml:"out"`
	Suite       string       `yaml:"suite"`
	Test        string       `yaml:"test"`
	DedupeConds bool         `yaml:"dedupe_conds"`
	Approx      ApproxConfig `yaml:"approx"`
	Narrate     bool         `yaml:"narrate"`
}

// LoadConfig reads and parses a session YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse session config: %w", err)
	}
	return &cfg, nil
}

// MatchOptions converts the approx section to matcher options, falling
// back to defaults for unset values.
func (a ApproxConfig) MatchOptions() match.Options {
	opts := match.DefaultOptions()
	if a.TopK > 0 {
		opts.TopK = a.TopK
	}
	if a.Threshold > 0 {
		opts.Threshold = a.Threshold
	}
	if a.Prefilter > 0 {
		opts.PrefilterSize = a.Prefilter
	}
	return opts
}
