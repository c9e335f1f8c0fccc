package identity

import "strings"

// MaxUIDLength is the longest UID the UI value representation allows.
const MaxUIDLength = 64

// IsValidUID checks the DICOM UID grammar: dot separated numeric components,
// no empty components, no leading zeros, at most 64 characters.
func IsValidUID(uid string) bool {
	if uid == "" || len(uid) > MaxUIDLength {
		return false
	}

	for _, component := range strings.Split(uid, ".") {
		if !isNumericComponent(component) {
			return false
		}
	}

	return true
}

// IsValidRoot checks an organization root used as a UID prefix. It must end
// in a dot and leave room for a generated suffix.
func IsValidRoot(root string) bool {
	if !strings.HasSuffix(root, ".") || len(root) > MaxUIDLength-minSuffixDigits {
		return false
	}
	return IsValidUID(strings.TrimSuffix(root, "."))
}

func isNumericComponent(c string) bool {
	if c == "" {
		return false
	}
	if len(c) > 1 && c[0] == '0' {
		return false
	}
	for _, r := range c {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
