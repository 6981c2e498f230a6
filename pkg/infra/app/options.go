package app

import "github.com/gregorizeidler-cw/RegRAG/pkg/app/cliflag"

// CliOptions abstracts configuration options for reading parameters from the
// command line, config files and the environment.
type CliOptions interface {
	// Flags returns flags for a specific server by section name.
	Flags() cliflag.NamedFlagSets
	// Complete fills in defaults derived from other fields.
	Complete() error
	// Validate validates all the required options.
	Validate() error
}
