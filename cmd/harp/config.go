package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// runConfig is harp's optional harp.yaml run profile (SPEC_FULL.md §2.3):
// register-file size hints, slow-op feature toggles, and whether the
// profiler report prints after a run. Every field has a usable zero
// value, so a missing or partial file is never an error.
type runConfig struct {
	RegisterHint int  `yaml:"register_hint"`
	EnablePhases bool `yaml:"enable_phases"`
	Profile      bool `yaml:"profile"`
}

// loadConfig reads harp.yaml from the current directory if present;
// a missing file yields the zero-value config rather than an error,
// since the CLI is fully usable without one.
func loadConfig() (runConfig, error) {
	var cfg runConfig
	data, err := os.ReadFile("harp.yaml")
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
