package depset

import (
	"sort"

	"golang.org/x/text/unicode/norm"

	"modfed/internal/project"
)

// Specifier is one third-party dependency as the application imports it:
// the raw specifier string ("react", "lodash/merge") plus the first source
// file that referenced it. Name is stored NFC-normalized so that visually
// identical specifiers from differently-encoded sources compare and hash
// the same.
type Specifier struct {
	Name   string
	Source string
}

// NormalizeName returns the NFC form of a raw import specifier.
func NormalizeName(raw string) string {
	return norm.NFC.String(raw)
}

// sortSpecifiers orders by name; names are unique within a set.
func sortSpecifiers(specs []Specifier) {
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
}

// Fingerprint computes the order-independent digest of a specifier set:
// the sha256 of the sorted, NUL-separated names. Two sets are equal exactly
// when their fingerprints are. The empty set maps to the zero digest so a
// never-written snapshot and a dependency-free application compare equal.
func Fingerprint(specs []Specifier) project.Digest {
	if len(specs) == 0 {
		return project.ZeroDigest
	}
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	sort.Strings(names)
	return project.HashStrings(names)
}
