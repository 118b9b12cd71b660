// Package sanitize provides text sanitization for user-supplied free text
// such as feedback, close reasons and file names.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`[ \t]+`)
	entityReplacer  = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
	)
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips HTML and collapses runs of spaces and tabs.
func Text(s string) string {
	return whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
}

// TextPtr sanitizes an optional string; blank results become nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	if result == "" {
		return nil
	}
	return &result
}

// FileName keeps only the final path segment of a client-supplied file name.
func FileName(name string) string {
	name = strings.ReplaceAll(Text(name), "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}
