// Package config holds the sample host's environment-driven defaults,
// parsed with caarlos0/env the way the rest of the dependency stack
// expects configuration to be sourced (spec.md §6 does not mandate a
// config surface; this is the ambient convention carried from the wider
// dependency stack rather than the VM's own contract).
package config

import (
	"github.com/caarlos0/env/v6"
)

// Defaults holds the sample CLI host's tunables, overridable via
// environment variables.
type Defaults struct {
	// MaxSteps caps the instructions the VM runs per Update call, nested
	// sub-executions for flag preambles and definitions included
	// (machine.WithMaxSteps).
	MaxSteps uint64 `env:"DNXVM_MAX_STEPS" envDefault:"1000000"`
	// RNGSeed pins the VM's single RNG (machine.WithSeed) when non-zero.
	RNGSeed uint64 `env:"DNXVM_RNG_SEED"`
	// TranslationPath optionally preloads a translation file at startup.
	TranslationPath string `env:"DNXVM_TRANSLATION_FILE"`
}

// Load parses Defaults from the process environment.
func Load() (Defaults, error) {
	var d Defaults
	if err := env.Parse(&d); err != nil {
		return Defaults{}, err
	}
	return d, nil
}
