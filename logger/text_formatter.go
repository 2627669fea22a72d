package logger

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/kr/pretty"
	"github.com/logrusorgru/aurora"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var baseTimestamp = time.Now()

type textFormatter struct {
	TextFormatConfig
	json jsonFormatter
}

func isColorTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) && runtime.GOOS != "windows"
}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	isColored := (f.ForceColors || isColorTerminal(entry.Logger.Out)) && !f.DisableColors
	if !isColored {
		return f.json.Format(entry)
	}

	ns, _ := entry.Data["ns"].(string)

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	if !f.DisableTimestamp {
		if !f.FullTimestamp {
			// Seconds since this package was initialized
			t := entry.Time.Sub(baseTimestamp) / time.Second
			entry.Data["time"] = fmt.Sprintf("%04d", int(t))
		} else {
			format := f.TimestampFormat
			if format == "" {
				format = defaultTimestampFormat
			}
			entry.Data["time"] = entry.Time.Format(format)
		}
	}

	var levelColor aurora.Color
	switch entry.Level {
	case logrus.DebugLevel:
		levelColor = aurora.MagentaFg
	case logrus.WarnLevel:
		levelColor = aurora.BrownFg
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		levelColor = aurora.RedFg
	default:
		levelColor = aurora.CyanFg
	}
	nsColor := levelColor | aurora.BoldFm

	fmt.Fprintf(b, "%s%-20s %s\n", f.Indent, aurora.Colorize(ns, nsColor), entry.Message)

	for _, k := range f.sortKeys(entry) {
		v := formatValue(entry.Data[k])
		if s, ok := v.(string); ok {
			v = strings.Join(strings.Split(s, "\n"), "\n"+strings.Repeat(" ", 21))
		}
		fmt.Fprintf(b, "%s%-20s %v\n", f.Indent, aurora.Colorize(k, levelColor), v)
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// formatValue leaves scalars, errors and Stringers alone and pretty-prints
// everything else.
func formatValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, complex64, complex128,
		error, fmt.Stringer:
		return v
	default:
		rv := reflect.ValueOf(x)
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return "<nil>"
		}
		return pretty.Sprint(x)
	}
}

func (f *textFormatter) sortKeys(entry *logrus.Entry) []string {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		// "ns" (namespace) always comes first, so skip that one.
		if k != "ns" {
			keys = append(keys, k)
		}
	}
	if !f.DisableSorting {
		sort.Strings(keys)
	}
	return keys
}
