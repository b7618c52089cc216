// Package config holds the running configuration of conclaved.
package config

import (
	"github.com/mellis-dev/conclave/internal/conclaved/options"
)

// Config is the running configuration structure of the conclaved service.
type Config struct {
	*options.Options
}

// CreateConfigFromOptions creates a running configuration instance based
// on the given command line or configuration file options.
func CreateConfigFromOptions(opts *options.Options) (*Config, error) {
	return &Config{opts}, nil
}
