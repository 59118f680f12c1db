package cloner

import (
	"flag"

	"github.com/grafana/dskit/multierror"
	"github.com/pkg/errors"
)

type Config struct {
	VerifyBodies          bool `yaml:"verify_bodies"`
	MaxTypes              int  `yaml:"max_types" category:"advanced"`
	MaxInstructions       int  `yaml:"max_instructions" category:"advanced"`
	IgnoreAssemblyVersion bool `yaml:"ignore_assembly_version"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.BoolVar(&cfg.VerifyBodies, "cloner.verify-bodies", true, "Verify every cloned method body before the clone is committed.")
	f.IntVar(&cfg.MaxTypes, "cloner.max-types", 0, "Maximum number of types, nested types included, cloned in a single operation. 0 to disable.")
	f.IntVar(&cfg.MaxInstructions, "cloner.max-instructions", 0, "Maximum number of instructions in a single cloned method body. 0 to disable.")
	f.BoolVar(&cfg.IgnoreAssemblyVersion, "cloner.ignore-assembly-version", false, "Treat references to assemblies that differ only in version as the same member.")
}

func (cfg *Config) Validate() error {
	var errs multierror.MultiError
	if cfg.MaxTypes < 0 {
		errs.Add(errors.New("invalid max-types value, must not be negative"))
	}
	if cfg.MaxInstructions < 0 {
		errs.Add(errors.New("invalid max-instructions value, must not be negative"))
	}
	return errs.Err()
}
