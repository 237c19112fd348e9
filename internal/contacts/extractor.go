// Package contacts derives deduplicated contact records from batches of
// fetched envelopes. Sender email addresses, case-normalized, are the dedup
// key; last-seen fields always track the most recent message by date.
package contacts

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"

	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

const previewLimit = 160

// Message pairs an envelope with the preview text derived from its body
type Message struct {
	Envelope types.Envelope
	Preview  string
}

// UpdateSet is the result of merging a batch of messages into the stored
// contact set. Parse failures on individual messages land in Errors and do
// not abort the batch.
type UpdateSet struct {
	Created []types.ProcessedContact
	Updated []types.ProcessedContact
	Errors  []string
}

// Saved returns the number of records actually written, created or updated
func (u *UpdateSet) Saved() int {
	return len(u.Created) + len(u.Updated)
}

// Extract merges a batch of messages into an account's existing contacts.
// existing is keyed by normalized email and is not mutated.
func Extract(msgs []Message, existing map[string]types.ProcessedContact) UpdateSet {
	var set UpdateSet

	// Working view of the batch: stored records plus records created here,
	// so two messages from the same new sender collapse into one contact
	working := make(map[string]*types.ProcessedContact, len(existing))
	created := make(map[string]bool)

	for _, msg := range msgs {
		env := msg.Envelope

		email, name, err := parseSender(env.From)
		if err != nil {
			set.Errors = append(set.Errors, fmt.Sprintf("message %d: %v", env.UID, err))
			continue
		}

		record, ok := working[email]
		if !ok {
			if stored, exists := existing[email]; exists {
				copied := stored
				record = &copied
			} else {
				record = &types.ProcessedContact{Email: email, Name: name}
				created[email] = true
			}
			working[email] = record
		}

		if record.Name == "" && name != "" {
			record.Name = name
		}

		// Last-seen fields advance only on strictly newer dates
		if newerThan(env.Date, record.LastEmailAt) {
			record.LastEmailUID = env.UID
			record.LastEmailPreview = msg.Preview
			record.LastEmailAt = env.Date
		}
	}

	for email, record := range working {
		if created[email] {
			set.Created = append(set.Created, *record)
			continue
		}
		if stored := existing[email]; stored != *record {
			set.Updated = append(set.Updated, *record)
		}
	}

	return set
}

// parseSender normalizes a raw From header into (email, display name)
func parseSender(from string) (string, string, error) {
	if strings.TrimSpace(from) == "" {
		return "", "", fmt.Errorf("missing sender address")
	}

	addr, err := mail.ParseAddress(from)
	if err != nil {
		return "", "", fmt.Errorf("unparseable sender %q: %w", from, err)
	}

	return strings.ToLower(strings.TrimSpace(addr.Address)), addr.Name, nil
}

// newerThan reports whether incoming is strictly newer than stored, with an
// absent stored date always losing and an absent incoming date never winning
// against a present one
func newerThan(incoming, stored *time.Time) bool {
	if stored == nil {
		return true
	}
	if incoming == nil {
		return false
	}
	return incoming.After(*stored)
}

// PreviewText renders a short plain-text preview of a message body, running
// HTML through html2text first
func PreviewText(body *types.Body) string {
	if body == nil {
		return ""
	}

	text := body.Text
	if body.HTML != "" {
		converted, err := html2text.FromString(body.HTML, html2text.Options{TextOnly: true})
		if err == nil {
			text = converted
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > previewLimit {
		text = string(runes[:previewLimit])
	}
	return text
}
