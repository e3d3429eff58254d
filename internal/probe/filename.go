package probe

import (
	"net/url"
	"strings"
)

const (
	// GenericFilename is used when nothing usable can be derived.
	GenericFilename = "file"
	// LongURLFilename replaces URL-derived names longer than maxURLNameLen.
	LongURLFilename = "file_from_url"

	maxURLNameLen = 64
)

var illegalFilenameChars = "\\/:*?\"<>|"

// SanitizeFilename strips filesystem-illegal characters. An empty result
// falls back to the generic placeholder. Idempotent.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, c := range name {
		if strings.ContainsRune(illegalFilenameChars, c) {
			continue
		}
		b.WriteRune(c)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return GenericFilename
	}
	return out
}

// FilenameFromURL derives a candidate name from the path segment after the
// last slash. Over-long candidates are discarded for a generic name.
func FilenameFromURL(rawURL string) string {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		name = u.Path
	}
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return GenericFilename
	}
	if len(name) > maxURLNameLen {
		return LongURLFilename
	}
	return name
}

// ParseContentDisposition pulls the filename out of a Content-Disposition
// header value (filename="value", semicolon-terminated). Empty when absent.
func ParseContentDisposition(header string) string {
	if header == "" {
		return ""
	}
	idx := strings.Index(header, "filename=")
	if idx < 0 {
		return ""
	}
	part := header[idx+len("filename="):]
	if semi := strings.Index(part, ";"); semi >= 0 {
		part = part[:semi]
	}
	part = strings.TrimSpace(part)
	part = strings.Trim(part, `"`)
	part = strings.Trim(part, "'")
	return part
}

// IsVideoFilename reports whether the name carries a common video extension.
func IsVideoFilename(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".mp4", ".mkv", ".avi", ".mov", ".webm"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
