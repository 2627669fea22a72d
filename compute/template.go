package compute

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/ohsu-comp-bio/glidein/config"
	"github.com/ohsu-comp-bio/glidein/util/fsutil"
)

// Render executes tpl against data and writes the result to dst with the
// given mode. Referencing a field data does not have is an error.
func Render(tpl config.Template, dst string, data interface{}, mode os.FileMode) error {
	t, err := template.New(tpl.Name).Option("missingkey=error").Parse(tpl.Text)
	if err != nil {
		return fmt.Errorf("parsing template %s: %w", tpl.Origin, err)
	}

	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return fmt.Errorf("rendering template %s: %w", tpl.Origin, err)
	}

	if err := fsutil.WriteFile(dst, b.Bytes(), mode); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// Substitute replaces $NAME and ${NAME} in s with vars[NAME]. "$$" is a
// literal "$". Any other name missing from vars is an error.
func Substitute(s string, vars map[string]string) (string, error) {
	var missing []string
	out := os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		v, ok := vars[name]
		if !ok {
			missing = append(missing, "$"+name)
			return ""
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("cannot substitute %s in %q", strings.Join(missing, ", "), s)
	}
	return out, nil
}
