// Package source loads raw content from local files so it can be fed to the
// ingestion pipeline: plain text and markdown as-is, HTML reduced to its
// visible text, PDFs through their plain-text stream. Images are not read
// here; they are ingested by reference.
package source

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	pdf "github.com/dslipak/pdf"
	"golang.org/x/net/html"
)

// IsText reports whether path looks like an ingestable text document.
func IsText(path string) bool {
	l := strings.ToLower(path)
	return strings.HasSuffix(l, ".md") ||
		strings.HasSuffix(l, ".txt") ||
		strings.HasSuffix(l, ".html") ||
		strings.HasSuffix(l, ".htm") ||
		strings.HasSuffix(l, ".pdf")
}

// IsImage reports whether path looks like an ingestable image.
func IsImage(path string) bool {
	l := strings.ToLower(path)
	return strings.HasSuffix(l, ".png") ||
		strings.HasSuffix(l, ".jpg") ||
		strings.HasSuffix(l, ".jpeg") ||
		strings.HasSuffix(l, ".gif") ||
		strings.HasSuffix(l, ".webp")
}

// FromFile returns the normalized text content of a document file.
func FromFile(path string) (string, error) {
	l := strings.ToLower(path)

	var content string
	switch {
	case strings.HasSuffix(l, ".pdf"):
		text, err := fromPDF(path)
		if err != nil {
			return "", fmt.Errorf("read pdf %s: %w", path, err)
		}
		content = text

	case strings.HasSuffix(l, ".html"), strings.HasSuffix(l, ".htm"):
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		content = ExtractHTMLText(string(data))

	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		content = string(data)
	}

	return SanitizeUTF8(strings.TrimSpace(content)), nil
}

// ExtractHTMLText strips markup and scripts, keeping the visible text one
// line per text node.
func ExtractHTMLText(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				skip = true
			}
		}
		if n.Type == html.TextNode && !skip {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)

	lines := strings.Split(b.String(), "\n")
	var filtered []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if len(l) > 1 {
			filtered = append(filtered, l)
		}
	}
	return strings.Join(filtered, "\n")
}

func fromPDF(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	buf := bytes.NewBuffer(nil)
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeUTF8 drops invalid bytes so downstream stores never see broken
// encodings.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			s = s[1:]
			continue
		}
		b.WriteRune(r)
		s = s[size:]
	}
	return b.String()
}
