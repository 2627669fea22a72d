package config

import (
	"strconv"
	"time"
)

// Duration is a wrapper type for time.Duration which provides human-friendly
// text (un)marshaling. A bare integer is read as seconds.
// See https://github.com/golang/go/issues/16039
type Duration time.Duration

// String returns the string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText parses text into a duration value.
func (d *Duration) UnmarshalText(text []byte) error {
	// Ignore if there is no value set.
	if len(text) == 0 {
		return nil
	}
	if secs, err := strconv.ParseInt(string(text), 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// UnmarshalJSON accepts both "90s" and 90.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if s, err := strconv.Unquote(string(b)); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	return d.UnmarshalText(b)
}

// MarshalText converts a duration to text.
func (d Duration) MarshalText() (text []byte, err error) {
	return []byte(d.String()), nil
}

// Set sets the duration from the given string.
// Implements the pflag.Value interface.
func (d *Duration) Set(raw string) error {
	return d.UnmarshalText([]byte(raw))
}

// Type returns the name of this type.
// Implements the pflag.Value interface.
func (d *Duration) Type() string {
	return "duration"
}
