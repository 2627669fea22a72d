// Package orca writes the workflow configuration of a run and starts the
// orca launcher on it.
package orca

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ohsu-comp-bio/glidein/compute"
	"github.com/ohsu-comp-bio/glidein/config"
	"github.com/ohsu-comp-bio/glidein/util"
	"github.com/ohsu-comp-bio/glidein/util/envstr"
	"github.com/ohsu-comp-bio/glidein/util/fsutil"
)

// NodeSetRequiredCode is the exit status of a run missing the node set its
// platform requires.
const NodeSetRequiredCode = 10

// Options are the command line settings of a run. Empty values keep the
// platform's execConfig.yaml settings.
type Options struct {
	Command          string
	IDFile           string
	EupsPath         string
	NodeSet          string
	IDsPerJob        int
	DefaultRoot      string
	LocalScratch     string
	DataDirectory    string
	FileSystemDomain string
	UserName         string
	UserHome         string
	RunID            string
	Verbose          bool
	// NAME=VERSION pairs replacing or adding set up products.
	Setups []string
}

// Params are the inputs of NewWorkflow.
type Params struct {
	Platform       string
	PlatformDir    string
	Exec           config.ExecConfig
	CondorInfo     config.CondorInfo
	CondorInfoFile string
	Options        Options
	// Set up products, name to version. Defaults to the SETUP_* variables
	// of the environment.
	Products map[string]string
	// Defaults to the current OS user.
	LoginName string
	// Defaults to time.Now().
	Now time.Time
}

// Workflow is a resolved run. Its exported fields are the values available
// to the workflow config templates.
type Workflow struct {
	Platform    string
	PlatformDir string

	UserName string
	UserHome string

	DefaultRoot      string
	LocalScratch     string
	DataDirectory    string
	FileSystemDomain string
	EupsPath         string
	IDsPerJob        int
	NodeSet          string
	InputDataFile    string
	Command          string
	// eups setup commands, one per line, escaped for a template keyword.
	SetupPackages string

	RunID      string
	ConfigDir  string
	ConfigFile string
	// Name of the template the config is written from.
	Template string
}

// NewWorkflow resolves p into a Workflow.
func NewWorkflow(p Params) (*Workflow, error) {
	plat := p.Exec.Platform
	opt := p.Options

	if plat.NodeSetRequired && opt.NodeSet == "" {
		return nil, &util.ExitStatus{
			Code: NodeSetRequiredCode,
			Msg:  "error: nodeset parameter required by this platform",
		}
	}

	tpl, err := templateName(plat.SetupUsing, len(opt.Setups) > 0)
	if err != nil {
		return nil, err
	}

	u, err := compute.LookupUser(p.CondorInfo, p.CondorInfoFile, p.Platform)
	if err != nil {
		return nil, err
	}
	if opt.UserName != "" {
		u.Name = opt.UserName
	}
	if opt.UserHome != "" {
		u.Home = opt.UserHome
	}
	vars := map[string]string{
		"USER_NAME":    u.Name,
		"USER_HOME":    u.Home,
		"USER_SCRATCH": u.Scratch,
	}

	w := &Workflow{
		Platform:         p.Platform,
		PlatformDir:      p.PlatformDir,
		UserName:         u.Name,
		UserHome:         u.Home,
		DefaultRoot:      opt.DefaultRoot,
		LocalScratch:     opt.LocalScratch,
		DataDirectory:    opt.DataDirectory,
		FileSystemDomain: plat.FileSystemDomain,
		EupsPath:         plat.EupsPath,
		IDsPerJob:        plat.IDsPerJob,
		NodeSet:          opt.NodeSet,
		Command:          opt.Command,
		RunID:            opt.RunID,
		Template:         tpl,
	}

	if w.DefaultRoot == "" {
		if w.DefaultRoot, err = compute.Substitute(plat.DefaultRoot, vars); err != nil {
			return nil, fmt.Errorf("DefaultRoot: %w", err)
		}
	}
	if w.LocalScratch == "" {
		if w.LocalScratch, err = compute.Substitute(plat.LocalScratch, vars); err != nil {
			return nil, fmt.Errorf("LocalScratch: %w", err)
		}
	}
	if w.DataDirectory == "" {
		if w.DataDirectory, err = envstr.Resolve(plat.DataDirectory); err != nil {
			return nil, fmt.Errorf("DataDirectory: %w", err)
		}
	}
	if opt.FileSystemDomain != "" {
		w.FileSystemDomain = opt.FileSystemDomain
	}
	if opt.EupsPath != "" {
		w.EupsPath = opt.EupsPath
	}
	if opt.IDsPerJob != 0 {
		w.IDsPerJob = opt.IDsPerJob
	}

	if opt.IDFile != "" {
		if w.InputDataFile, err = filepath.Abs(opt.IDFile); err != nil {
			return nil, err
		}
		// Expanded by orca for every job.
		w.Command += " ${id_option}"
	}

	if w.RunID == "" {
		login := p.LoginName
		if login == "" {
			login = compute.LoginName(u.Name)
		}
		now := p.Now
		if now.IsZero() {
			now = time.Now()
		}
		w.RunID = compute.RunID(login, now)
	}

	products := p.Products
	if products == nil {
		products = SetupProducts(os.Environ())
	}
	overrides, err := parseSetups(opt.Setups)
	if err != nil {
		return nil, err
	}
	w.SetupPackages = SetupPackages(products, overrides, p.Platform)

	w.ConfigDir = filepath.Join(w.LocalScratch, "configs")
	w.ConfigFile = filepath.Join(w.ConfigDir, w.RunID+".config")
	return w, nil
}

// templateName picks the workflow config template for the platform's
// SetupUsing setting. Products given on the command line always need
// explicit setups.
func templateName(setupUsing string, setups bool) (string, error) {
	switch {
	case setupUsing == "":
		return config.OrcaSetupsTemplate, nil
	case setupUsing == "getenv" && !setups:
		return config.OrcaGetenvTemplate, nil
	case setups || setupUsing == "setups":
		return config.OrcaSetupsTemplate, nil
	default:
		return "", fmt.Errorf("invalid value for execConfig element 'SetupUsing'= '%s'; should be 'getenv' or 'setups'", setupUsing)
	}
}

// Write renders tpl into ConfigFile.
func (w *Workflow) Write(tpl config.Template) error {
	if err := fsutil.EnsureDir(w.ConfigDir); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return compute.Render(tpl, w.ConfigFile, w, 0644)
}

// Launch runs program with the config file and run id, and waits for it.
func (w *Workflow) Launch(ctx context.Context, runner compute.Runner, program string) error {
	cmd, err := compute.NewCommand(program, w.ConfigFile, w.RunID)
	if err != nil {
		return err
	}
	code, err := runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		return &compute.ExitError{Cmd: cmd.String(), Code: code}
	}
	return nil
}

// SetupProducts reads the products eups has set up from environ. eups
// exports each one as SETUP_<PRODUCT>="<name> <version> -f <flavor> ...".
func SetupProducts(environ []string) map[string]string {
	products := map[string]string{}
	for _, kv := range environ {
		if !strings.HasPrefix(kv, "SETUP_") {
			continue
		}
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		f := strings.Fields(kv[i+1:])
		if len(f) < 2 {
			continue
		}
		products[f[0]] = f[1]
	}
	return products
}

func parseSetups(setups []string) (map[string]string, error) {
	out := make(map[string]string, len(setups))
	for _, s := range setups {
		name, version, ok := strings.Cut(s, "=")
		if !ok || name == "" || version == "" {
			return nil, fmt.Errorf("invalid setup %q: expected NAME=VERSION", s)
		}
		out[name] = version
	}
	return out, nil
}

// SetupPackages returns an eups setup line for every product, with
// overrides replacing or adding versions. Locally set up products
// ("LOCAL:" versions) only exist on the submit host and are left out,
// except on the "lsst" platform which runs there.
func SetupPackages(products, overrides map[string]string, platform string) string {
	all := make(map[string]string, len(products)+len(overrides))
	for n, v := range products {
		all[n] = v
	}
	for n, v := range overrides {
		all[n] = v
	}

	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		v := all[n]
		if platform != "lsst" && strings.HasPrefix(v, "LOCAL:") {
			continue
		}
		fmt.Fprintf(&b, "setup -j %s %s\\n\\\n", n, v)
	}
	return b.String()
}
