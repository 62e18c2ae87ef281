// Package sanitize cleans free text coming from users or from the model
// before it is stored or echoed back into the media UI.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var (
	octets     = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	whitespace = regexp.MustCompile(`[\r\n\t ]+`)
)

// TextField returns s as a single line of plain text: markup and percent
// encoded octets are removed, whitespace runs collapse to one space.
func TextField(s string) string {
	return clean(s, false)
}

// TextareaField is TextField that keeps line breaks and indentation.
func TextareaField(s string) string {
	return clean(s, true)
}

func clean(s string, keepNewlines bool) string {
	s = strings.ToValidUTF8(s, "")
	s = StripTags(s)
	s = dropControls(s)

	for octets.MatchString(s) {
		s = octets.ReplaceAllString(s, "")
	}
	if !keepNewlines {
		s = whitespace.ReplaceAllString(s, " ")
	}
	return strings.TrimSpace(s)
}

// StripTags removes all tags, comments and the bodies of script and style
// elements. Entities in text are left as written.
func StripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Raw())
			}
		case html.StartTagToken:
			if name, _ := z.TagName(); rawText(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); rawText(name) && skip > 0 {
				skip--
			}
		}
	}
}

func rawText(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

func dropControls(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
