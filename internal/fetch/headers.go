package fetch

import (
	"mime"
	"net/mail"
	"strings"
	"time"
)

// headerFields holds the parsed values of the header lines the envelope
// listing cares about. Anything else in the header block is ignored.
type headerFields struct {
	Subject string
	From    string
	Date    *time.Time
}

var wordDecoder = &mime.WordDecoder{}

// parseHeaderFields parses a raw RFC 5322 header block. Continuation lines
// are unfolded, each logical line is split on the first colon, and header
// names are matched case-insensitively. Malformed lines (no colon) are
// skipped rather than failing the message.
func parseHeaderFields(raw string) headerFields {
	var fields headerFields

	for _, line := range unfoldLines(raw) {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}

		name := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])

		switch name {
		case "subject":
			fields.Subject = decodeWord(value)
		case "from":
			fields.From = decodeWord(value)
		case "date":
			if t, err := mail.ParseDate(value); err == nil {
				fields.Date = &t
			}
		}
	}

	return fields
}

// unfoldLines splits a header block into logical lines, joining folded
// continuation lines (leading space or tab) onto their parent.
func unfoldLines(raw string) []string {
	var lines []string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		if (line[0] == ' ' || line[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += " " + strings.TrimLeft(line, " \t")
			continue
		}

		lines = append(lines, line)
	}

	return lines
}

// decodeWord decodes RFC 2047 encoded-words, returning the input unchanged
// when decoding fails
func decodeWord(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
