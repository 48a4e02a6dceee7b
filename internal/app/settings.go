package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the optional per-project castor.yaml. It supplies defaults
// that explicit CLI flags override.
type Settings struct {
	Digests     string            `yaml:"digests"`
	Concurrency int64             `yaml:"concurrency"`
	Env         map[string]string `yaml:"env"`
}

// loadSettings reads the settings file. A missing file yields empty settings.
func loadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding settings %s: %w", path, err)
	}
	return &s, nil
}
