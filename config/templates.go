package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
)

// Names of the templates a platform package may provide under etc/templates.
const (
	SlurmSubmitTemplate  = "generic.slurm.template"
	PBSSubmitTemplate    = "generic.pbs.template"
	CondorConfigTemplate = "glidein_condor_config.template"
	AllocationTemplate   = "allocation.sh.template"
	DynamicSlotsTemplate = "dynamic_slots.template"
	// Workflow configs written by run-orca.
	OrcaSetupsTemplate = "config_with_setups.py.template"
	OrcaGetenvTemplate = "config_with_getenv.py.template"
)

// The following fields are available for use in the templates. They are
// the exported fields of compute.Allocation, for example:
//
// NodeSet            node set name, matched by the glide-in START expression
// NodeCount          number of nodes requested
// Slots              slots per node
// WallClock          maximum wall clock time
// Queue              scheduler queue/partition
// EmailNotification  mail directive, or "#" to comment it out
// ScratchDir         scratch directory on the compute nodes
// ConfigDir          directory holding the generated files
// GeneratedConfig    base name of the generated condor config
// GeneratedAllocateScript  base name of the generated allocation script
//
// See https://golang.org/pkg/text/template for more information

//go:embed templates/*.template
var defaultTemplates embed.FS

// Template is the text of a template and where it came from.
type Template struct {
	Name   string
	Origin string
	Text   string
}

// LoadTemplate finds the template name for platform with FindPackageFile,
// falling back to the built-in default when no candidate exists.
func LoadTemplate(name, platform string) (Template, error) {
	path, err := FindPackageFile(name, "templates", platform)
	switch {
	case err == nil:
		b, err := os.ReadFile(path)
		if err != nil {
			return Template{}, fmt.Errorf("reading template %s: %w", path, err)
		}
		return Template{Name: name, Origin: path, Text: string(b)}, nil
	case errors.Is(err, os.ErrNotExist):
		return DefaultTemplate(name)
	default:
		return Template{}, err
	}
}

// DefaultTemplate returns the built-in template called name.
func DefaultTemplate(name string) (Template, error) {
	b, err := defaultTemplates.ReadFile("templates/" + name)
	if err != nil {
		return Template{}, fmt.Errorf("no default template named %s", name)
	}
	return Template{Name: name, Origin: "builtin:" + name, Text: string(b)}, nil
}
