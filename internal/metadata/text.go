package metadata

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
)

// StripTags removes markup from s, returning its text with whitespace
// collapsed.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

// ParseTags splits free text on commas, semicolons and newlines into
// case-folded, trimmed, de-duplicated tags sorted alphabetically.
func ParseTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	folder := cases.Fold()
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		t := folder.String(StripTags(f))
		if t != "" {
			tags = append(tags, t)
		}
	}
	slices.Sort(tags)
	return slices.Compact(tags)
}
