package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/units"
)

// MemorySize is an amount of memory in MiB. It unmarshals from a plain
// number of MiB or from a size string such as "4GiB" or "512MB".
type MemorySize int64

// MiB returns the size in mebibytes.
func (m MemorySize) MiB() int {
	return int(m)
}

// String returns the size in MiB.
func (m MemorySize) String() string {
	return strconv.FormatInt(int64(m), 10)
}

// UnmarshalJSON accepts a number or a string.
func (m *MemorySize) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		return m.Set(n.String())
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("memory size must be a number or a string: %s", b)
	}
	return m.Set(s)
}

// MarshalJSON writes the size as a number of MiB.
func (m MemorySize) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// Set parses raw. Implements the pflag.Value interface.
func (m *MemorySize) Set(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*m = MemorySize(n)
		return nil
	}
	b, err := units.ParseBase2Bytes(raw)
	if err != nil {
		return fmt.Errorf("invalid memory size %q: %w", raw, err)
	}
	*m = MemorySize(int64(b) / int64(units.MiB))
	return nil
}

// Type returns the name of this type.
// Implements the pflag.Value interface.
func (m *MemorySize) Type() string {
	return "memory"
}
