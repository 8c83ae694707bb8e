package config

import "time"

// Duration is a time.Duration written as "1s", "250ms" in files and env
type Duration struct {
	time.Duration
}

// D wraps d
func D(d time.Duration) Duration {
	return Duration{d}
}

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
