package project

import "unicode"

// IsValidNamespace reports whether name can serve as the global variable
// the remote entry registers on. ASCII identifier rules: letter or
// underscore first, letters, digits and underscores after.
func IsValidNamespace(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r > unicode.MaxASCII {
			return false
		}
		if i == 0 && r != '_' && !unicode.IsLetter(r) {
			return false
		}
		if i > 0 && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
