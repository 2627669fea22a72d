// Package envstr expands $NAME references in configuration strings from the
// process environment.
package envstr

import (
	"fmt"
	"os"
	"regexp"
)

var varPattern = regexp.MustCompile(`\$[a-zA-Z0-9_]+`)

// Resolve replaces every $NAME in s with the value of the environment
// variable NAME. An unset variable is an error naming it.
func Resolve(s string) (string, error) {
	return ResolveFunc(s, os.LookupEnv)
}

// ResolveFunc is Resolve with a caller supplied lookup.
func ResolveFunc(s string, lookup func(string) (string, bool)) (string, error) {
	var missing string
	out := varPattern.ReplaceAllStringFunc(s, func(ref string) string {
		if missing != "" {
			return ref
		}
		v, ok := lookup(ref[1:])
		if !ok {
			missing = ref
			return ref
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("couldn't find environment variable %s", missing)
	}
	return out, nil
}
