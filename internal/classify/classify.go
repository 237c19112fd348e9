// Package classify inspects raw message content and reports structural
// signals: whether it is HTML, whether it carries images or links, and how
// much visible text it holds. Detection is a pure function of its input and
// safe to call from any number of goroutines at once.
package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

// openingTag matches opening (or self-closing) tags of the form <name ...>.
// One pass over the content with this pattern collects every signal at once,
// which matters for large bodies.
var openingTag = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)(?:\s[^<>]*)?/?>`)

// anyTag matches any tag-like substring, used for stripping before the
// visible-text count
var anyTag = regexp.MustCompile(`<[^>]*>`)

// structuralTags are the tag names whose presence marks content as HTML
var structuralTags = map[string]bool{
	"html": true,
	"body": true,
	"div":  true,
	"p":    true,
	"br":   true,
}

// Detect classifies one message body. The optional MIME-type hint seeds the
// HTML flag but never short-circuits the scan; the tag scan still runs and
// can only add signals.
func Detect(content, mimeHint string) types.Detection {
	var d types.Detection

	if strings.Contains(strings.ToLower(mimeHint), "html") {
		d.IsHTML = true
	}

	for _, match := range openingTag.FindAllStringSubmatch(content, -1) {
		switch strings.ToLower(match[1]) {
		case "img":
			d.HasImages = true
		case "a":
			d.HasLinks = true
		default:
			if structuralTags[strings.ToLower(match[1])] {
				d.IsHTML = true
			}
		}
	}

	text := content
	if d.IsHTML {
		text = anyTag.ReplaceAllString(text, "")
	}
	d.CharacterCount = utf8.RuneCountInString(strings.TrimSpace(text))

	return d
}
