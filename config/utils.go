package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/hashicorp/go-multierror"

	"github.com/ohsu-comp-bio/glidein/util/envstr"
)

// ToYaml formats the configuration into YAML and returns the bytes.
func ToYaml(c Config) []byte {
	// Config contains only plain data, so Marshal cannot fail.
	b, _ := yaml.Marshal(c)
	return b
}

// Parse parses a YAML doc into the given Config instance.
func Parse(raw []byte, conf *Config) error {
	return yaml.Unmarshal(raw, conf)
}

// ParseFile parses a glidein config file, which is formatted in YAML,
// and returns a Config struct.
func ParseFile(relpath string, conf *Config) error {
	return parseFile(relpath, conf)
}

// LoadExecConfig reads and validates an execConfig.yaml file.
// Environment variables in path are resolved first.
func LoadExecConfig(path string) (ExecConfig, error) {
	var c ExecConfig
	if err := parseFile(path, &c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// LoadAllocationConfig reads and validates a scheduler allocation config file.
func LoadAllocationConfig(path string) (AllocationConfig, error) {
	var c AllocationConfig
	if err := parseFile(path, &c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// LoadCondorInfo reads a condor-info.yaml file.
func LoadCondorInfo(path string) (CondorInfo, error) {
	var c CondorInfo
	err := parseFile(path, &c)
	return c, err
}

func parseFile(relpath string, dst interface{}) error {
	if relpath == "" {
		return nil
	}

	resolved, err := envstr.Resolve(relpath)
	if err != nil {
		return err
	}

	// Try to get absolute path. If it fails, fall back to relative path.
	path, abserr := filepath.Abs(resolved)
	if abserr != nil {
		path = resolved
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config at path %s: %w", path, err)
	}

	if err := yaml.Unmarshal(source, dst); err != nil {
		return fmt.Errorf("failed to parse config at path %s: %w", path, err)
	}
	return nil
}

// Validate checks that the exec config names a known scheduler and a
// local scratch directory.
func (c ExecConfig) Validate() error {
	var errs *multierror.Error
	switch strings.ToLower(c.Platform.Scheduler) {
	case "slurm", "pbs":
	case "":
		errs = multierror.Append(errs, fmt.Errorf("Platform.Scheduler is required"))
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown scheduler %q", c.Platform.Scheduler))
	}
	if c.Platform.LocalScratch == "" {
		errs = multierror.Append(errs, fmt.Errorf("Platform.LocalScratch is required"))
	}
	return errs.ErrorOrNil()
}

// Validate checks the sizing fields of an allocation config.
func (c AllocationConfig) Validate() error {
	var errs *multierror.Error
	p := c.Platform
	if p.AutoCpus < 0 {
		errs = multierror.Append(errs, fmt.Errorf("Platform.AutoCpus must not be negative"))
	}
	if p.PeakCpus < 0 {
		errs = multierror.Append(errs, fmt.Errorf("Platform.PeakCpus must not be negative"))
	}
	if p.MemoryPerCore < 0 {
		errs = multierror.Append(errs, fmt.Errorf("Platform.MemoryPerCore must not be negative"))
	}
	if p.AllowedAutoGlideins < 0 {
		errs = multierror.Append(errs, fmt.Errorf("Platform.AllowedAutoGlideins must not be negative"))
	}
	if p.TotalCoresPerNode < 0 {
		errs = multierror.Append(errs, fmt.Errorf("Platform.TotalCoresPerNode must not be negative"))
	}
	return errs.ErrorOrNil()
}

// ValidateSizing checks the fields the Slurm driver divides by or
// multiplies with. PBS allocations do not need them.
func (c AllocationConfig) ValidateSizing() error {
	var errs *multierror.Error
	p := c.Platform
	if p.AutoCpus <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("Platform.AutoCpus must be positive"))
	}
	if p.PeakCpus <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("Platform.PeakCpus must be positive"))
	}
	if p.MemoryPerCore <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("Platform.MemoryPerCore must be positive"))
	}
	return errs.ErrorOrNil()
}
