// Package utils holds small shared helpers with no domain state.
package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// HTMLSanitizer cleans user-supplied HTML before it is stored. Resolution
// texts and closure comments pass through here.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer builds a policy that allows common rich-text formatting
// and strips everything that could carry script.
func NewHTMLSanitizer() *HTMLSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("b", "strong", "i", "em", "u", "s", "strike", "del")
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowElements("p", "br", "hr", "div", "span")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("blockquote", "code", "pre")

	p.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td")
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")

	p.AllowElements("img")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")

	p.AllowElements("a")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &HTMLSanitizer{policy: p}
}

// Sanitize cleans HTML content.
func (s *HTMLSanitizer) Sanitize(content string) string {
	return s.policy.Sanitize(content)
}

// MarkdownToHTML renders markdown to HTML. On conversion failure the
// original content is returned; the sanitizer still runs on it afterwards.
func MarkdownToHTML(markdown string) string {
	md := goldmark.New(
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	var buf strings.Builder
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return markdown
	}
	return buf.String()
}

// StripHTML removes all markup and returns plain text.
func StripHTML(content string) string {
	return bluemonday.StrictPolicy().Sanitize(content)
}

// IsHTML reports whether the content looks like HTML rather than plain
// text or markdown.
func IsHTML(content string) bool {
	lower := strings.ToLower(content)
	for _, tag := range []string{"<p>", "<br>", "<div>", "<span>", "<strong>", "<em>", "<ul>", "<ol>", "<li>", "<table>", "<a ", "<blockquote>", "<img ", "<h1>", "<h2>", "<h3>"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}
