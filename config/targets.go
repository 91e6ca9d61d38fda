package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Targets is the YAML form of the scrape target list:
//
//	state: Karnataka
//	market: Bangalore
//	commodities: [Wheat, Rice]
type Targets struct {
	State       string   `yaml:"state"`
	Market      string   `yaml:"market"`
	Commodities []string `yaml:"commodities"`
}

// LoadTargets reads a target list from a YAML file.
func LoadTargets(path string) (*Targets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read targets %q: %w", path, err)
	}

	var t Targets
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("config: parse targets %q: %w", path, err)
	}
	return &t, nil
}

func (t *Targets) apply(cfg *Config) {
	if s := strings.TrimSpace(t.State); s != "" {
		cfg.State = s
	}
	if m := strings.TrimSpace(t.Market); m != "" {
		cfg.Market = m
	}

	var commodities []string
	for _, c := range t.Commodities {
		if c = strings.TrimSpace(c); c != "" {
			commodities = append(commodities, c)
		}
	}
	if len(commodities) > 0 {
		cfg.Commodities = commodities
	}
}
