// Package render converts fetched article HTML into the forms the rest of
// the system stores and writes out. Everything here is a pure function of
// its input.
package render

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sym01/htmlsanitizer"
)

var stripPolicy = bluemonday.StrictPolicy()

// Snippet removes all html tags from the string, usually a description.
//
// Also limits the length of the string so there's not a massive chunk of
// text being output.
func Snippet(s string) string {
	s = strings.TrimSpace(s)
	s = stripPolicy.Sanitize(s)
	if len(s) > 2048 {
		s = s[:2048]
	}

	return strings.TrimSpace(s)
}

// Clean reduces raw article HTML to a safe subset for storage: scripts,
// trackers and event handlers dropped, structure kept.
func Clean(rawHTML string) string {
	cleaned, err := htmlsanitizer.SanitizeString(rawHTML)
	if err != nil {
		// Unparsable input falls back to a full strip.
		return Snippet(rawHTML)
	}

	return strings.TrimSpace(cleaned)
}

// Text extracts the readable body of an article as plain text.
//
// Readability needs the source url to resolve relative references; when
// extraction fails the stripped-down html is returned instead.
func Text(rawHTML, sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		u = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return stripAll(rawHTML)
	}

	return strings.TrimSpace(article.TextContent)
}

// stripAll is the no-length-cap variant of [Snippet].
func stripAll(s string) string {
	return strings.TrimSpace(stripPolicy.Sanitize(s))
}
