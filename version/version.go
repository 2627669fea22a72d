// Package version reports build information, set at link time with
// -ldflags "-X github.com/ohsu-comp-bio/glidein/version.Version=...".
package version

import "fmt"

// Build and version details
var (
	GitCommit = ""
	GitBranch = ""
	BuildDate = ""
	Version   = "unknown"
)

// String formats the version details, one "key: value" line each. Unset
// build details are left out.
func String() string {
	s := ""
	for _, kv := range [][2]string{
		{"git commit", GitCommit},
		{"git branch", GitBranch},
		{"build date", BuildDate},
	} {
		if kv[1] != "" {
			s += fmt.Sprintf("%s: %s\n", kv[0], kv[1])
		}
	}
	return s + "version: " + Version
}

// LogFields returns the build details as logger key/value pairs.
func LogFields() []interface{} {
	return []interface{}{
		"GitCommit", GitCommit,
		"GitBranch", GitBranch,
		"BuildDate", BuildDate,
		"Version", Version,
	}
}
