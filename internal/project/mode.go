package project

import "fmt"

// Mode selects the build profile. The two modes never share cache or output
// directories and may change independently.
type Mode string

const (
	// ModeDevelopment favors rebuild speed: sourcemaps on, no minification,
	// artifacts served in place by the dev gateway.
	ModeDevelopment Mode = "development"
	// ModeProduction favors output quality: minified, no sourcemaps, the
	// bundle directory is mirrored into the publish dir after a build.
	ModeProduction Mode = "production"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDevelopment, ModeProduction:
		return Mode(s), nil
	case "":
		return "", &ConfigError{Field: "mode", Reason: "mode is required (development or production)"}
	default:
		return "", &ConfigError{Field: "mode", Reason: fmt.Sprintf("unsupported mode %q (expected development or production)", s)}
	}
}

func (m Mode) String() string { return string(m) }

// Minify reports whether bundler output should be minified in this mode.
func (m Mode) Minify() bool { return m == ModeProduction }

// Sourcemap reports whether bundler output should carry sourcemaps.
func (m Mode) Sourcemap() bool { return m == ModeDevelopment }
