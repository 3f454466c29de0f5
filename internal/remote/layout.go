// Package remote defines the served shape of a bundled artifact: the
// entry file that registers the module container and the naming families
// every generated chunk falls into. The gateway classifies request paths
// with these names; the engine writes them.
package remote

import "strings"

const (
	// EntryName is the container entry the host page loads with a plain
	// script tag. Regenerated on every build, served non-cacheable.
	EntryName = "remoteEntry.js"

	// VirtualPrefix names per-dependency entry chunks ("mf-va_react-<hash>.js").
	VirtualPrefix = "mf-va_"
	// DepPrefix names shared code-split chunks ("mf-dep_<hash>.js").
	DepPrefix = "mf-dep_"
	// StaticPrefix names emitted static assets ("mf-static_logo-<hash>.svg").
	StaticPrefix = "mf-static_"
)

// Kind classifies a managed artifact file.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindEntry
	KindVirtual
	KindDep
	KindStatic
)

func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindVirtual:
		return "virtual"
	case KindDep:
		return "dep"
	case KindStatic:
		return "static"
	}
	return "unknown"
}

// Classify reports which artifact family a bare file name belongs to.
// Names with path separators are never managed; the artifact is flat.
func Classify(name string) (Kind, bool) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return KindUnknown, false
	}
	switch {
	case name == EntryName:
		return KindEntry, true
	case strings.HasPrefix(name, VirtualPrefix):
		return KindVirtual, true
	case strings.HasPrefix(name, DepPrefix):
		return KindDep, true
	case strings.HasPrefix(name, StaticPrefix):
		return KindStatic, true
	}
	return KindUnknown, false
}

// VirtualBase derives the entry base name for a dependency specifier:
// "react/jsx-runtime" becomes "mf-va_react_jsx-runtime". The bundler
// appends its content hash and extension.
func VirtualBase(specifier string) string {
	return VirtualPrefix + sanitize(specifier)
}

// sanitize keeps specifier-derived file names flat and portable. Slashes
// become underscores; anything outside a conservative set is dropped to
// an underscore too.
func sanitize(spec string) string {
	var b strings.Builder
	b.Grow(len(spec))
	for _, r := range spec {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '@' || r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
