package ingest

import (
	"path/filepath"
	"strings"
)

// maxFilenameLength is the enforced cap after sanitization (§4.4).
const maxFilenameLength = 255

// windowsReservedNames are device names DOS/Windows reserves; a
// sanitized filename matching one of these (case-insensitively, stem
// only) is prefixed with "file_" (§4.4).
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// sanitizeFilename implements §4.4's filename sanitization rules in
// order: remove path-traversal sequences, replace disallowed characters,
// prefix reserved device names, enforce the length cap while preserving
// the extension, and fall back to "file" for an empty result.
func sanitizeFilename(name string) string {
	name = stripTraversal(name)
	name = stripDisallowedChars(name)

	if name == "" {
		name = "file"
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if windowsReservedNames[strings.ToUpper(stem)] {
		name = "file_" + name
	}

	return enforceLength(name)
}

// stripTraversal removes ".." sequences and path separators by deletion,
// not replacement (§4.4 "Reject sequences .., /, \ by removal").
func stripTraversal(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return name
}

// stripDisallowedChars replaces every character outside
// [A-Za-z0-9._-] with "_" (§4.4).
func stripDisallowedChars(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// enforceLength truncates name to maxFilenameLength, preserving the
// extension (§4.4).
func enforceLength(name string) string {
	if len(name) <= maxFilenameLength {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) >= maxFilenameLength {
		return name[:maxFilenameLength]
	}
	stem := name[:len(name)-len(ext)]
	keep := maxFilenameLength - len(ext)
	if keep < 0 {
		keep = 0
	}
	if keep > len(stem) {
		keep = len(stem)
	}
	return stem[:keep] + ext
}
