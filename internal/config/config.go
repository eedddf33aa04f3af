// Package config holds the evaluator's tunable options.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options controls which calls the evaluator is willing to represent.
type Options struct {
	// DynamicShapes permits boolean-mask tensor subscription and other
	// shape-dependent operations whose output size is unknown at trace
	// time.
	DynamicShapes bool `yaml:"dynamic_shapes"`

	// SpecializeScalars pins tensor-backed host scalars to their
	// observed values instead of keeping them symbolic.
	SpecializeScalars bool `yaml:"specialize_scalars"`
}

// Default returns the options used when no configuration file is given.
func Default() Options {
	return Options{
		DynamicShapes:     false,
		SpecializeScalars: true,
	}
}

// Load reads options from a YAML file, filling unset fields with
// defaults.
func Load(path string) (Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse config %s: %w", path, err)
	}
	return opts, nil
}
