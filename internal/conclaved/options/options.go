// Package options defines the full flag and config-file surface of the
// conclaved server.
package options

import (
	genericoptions "github.com/mellis-dev/conclave/internal/pkg/options"
	"github.com/mellis-dev/conclave/internal/pkg/server"
	"github.com/mellis-dev/conclave/pkg/utils/json"
	"github.com/spf13/pflag"
)

// Options runs a conclaved server.
type Options struct {
	GenericServerRunOptions *genericoptions.ServerRunOptions `json:"server"    mapstructure:"server"`
	ModelOptions            *genericoptions.ModelOptions     `json:"models"    mapstructure:"models"`
	OrchestraOptions        *genericoptions.OrchestraOptions `json:"orchestra" mapstructure:"orchestra"`
	Log                     *LogOptions                      `json:"log"       mapstructure:"log"`
}

// LogOptions configures the process log file.
type LogOptions struct {
	Path  string `json:"path"  mapstructure:"path"`
	Level string `json:"level" mapstructure:"level"`
}

// NewOptions creates a new Options object with default parameters.
func NewOptions() *Options {
	return &Options{
		GenericServerRunOptions: genericoptions.NewServerRunOptions(),
		ModelOptions:            genericoptions.NewModelOptions(),
		OrchestraOptions:        genericoptions.NewOrchestraOptions(),
		Log: &LogOptions{
			Path:  "conclaved/conclaved.log",
			Level: "info",
		},
	}
}

// AddFlags adds all conclaved flags to the given FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.GenericServerRunOptions.AddFlags(fs)
	o.ModelOptions.AddFlags(fs)
	o.OrchestraOptions.AddFlags(fs)

	fs.StringVar(&o.Log.Path, "log.path", o.Log.Path, "Log file path.")
	fs.StringVar(&o.Log.Level, "log.level", o.Log.Level, "Log level: debug, info, warn, error.")
}

// ApplyTo applies the run options to the method receiver and returns self.
func (o *Options) ApplyTo(c *server.Config) error {
	return o.GenericServerRunOptions.ApplyTo(c)
}

// Validate checks Options and returns the collected errors.
func (o *Options) Validate() []error {
	var errs []error

	errs = append(errs, o.GenericServerRunOptions.Validate()...)
	errs = append(errs, o.ModelOptions.Validate()...)
	errs = append(errs, o.OrchestraOptions.Validate()...)

	return errs
}

// Complete set default Options.
func (o *Options) Complete() error {
	return nil
}

func (o *Options) String() string {
	data, _ := json.Marshal(o)

	return string(data)
}
