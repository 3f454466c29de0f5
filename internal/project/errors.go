package project

import "fmt"

// ConfigError reports invalid user configuration: an unusable manifest
// field, a bad mode string, a missing required value. It is fatal at
// startup; nothing in the pipeline retries on it.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration (%s): %s", e.Field, e.Reason)
}
