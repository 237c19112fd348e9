package contacts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

func datePtr(t time.Time) *time.Time {
	return &t
}

func envelope(uid uint32, from string, date *time.Time) types.Envelope {
	return types.Envelope{UID: uid, From: from, Date: date}
}

func TestExtractCreatesContact(t *testing.T) {
	d := datePtr(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	msgs := []Message{
		{Envelope: envelope(1, "Alice Smith <Alice@Example.com>", d), Preview: "hello"},
	}

	set := Extract(msgs, nil)

	require.Len(t, set.Created, 1)
	assert.Empty(t, set.Updated)
	assert.Empty(t, set.Errors)

	contact := set.Created[0]
	assert.Equal(t, "alice@example.com", contact.Email, "email key is case-normalized")
	assert.Equal(t, "Alice Smith", contact.Name)
	assert.Equal(t, uint32(1), contact.LastEmailUID)
	assert.Equal(t, "hello", contact.LastEmailPreview)
	assert.Equal(t, d, contact.LastEmailAt)
	assert.Equal(t, 1, set.Saved())
}

func TestExtractDeduplicatesWithinBatch(t *testing.T) {
	t1 := datePtr(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	t2 := datePtr(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	msgs := []Message{
		{Envelope: envelope(1, "bob@example.com", t1), Preview: "first"},
		{Envelope: envelope(2, "BOB@example.com", t2), Preview: "second"},
	}

	set := Extract(msgs, nil)

	require.Len(t, set.Created, 1)
	assert.Equal(t, uint32(2), set.Created[0].LastEmailUID)
	assert.Equal(t, "second", set.Created[0].LastEmailPreview)
}

func TestExtractOlderMessageDoesNotRegressLastSeen(t *testing.T) {
	t0 := datePtr(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	t1 := datePtr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	existing := map[string]types.ProcessedContact{
		"carol@example.com": {
			Email:            "carol@example.com",
			Name:             "Carol",
			LastEmailUID:     9,
			LastEmailPreview: "newest",
			LastEmailAt:      t1,
		},
	}
	msgs := []Message{
		{Envelope: envelope(3, "carol@example.com", t0), Preview: "stale"},
	}

	set := Extract(msgs, existing)

	assert.Empty(t, set.Created)
	assert.Empty(t, set.Updated, "older message must not touch the stored record")
	assert.Equal(t, 0, set.Saved())
}

func TestExtractNewerMessageUpdatesLastSeen(t *testing.T) {
	t1 := datePtr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	t2 := datePtr(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))

	existing := map[string]types.ProcessedContact{
		"dave@example.com": {Email: "dave@example.com", LastEmailUID: 4, LastEmailAt: t1},
	}
	msgs := []Message{
		{Envelope: envelope(8, "dave@example.com", t2), Preview: "fresh"},
	}

	set := Extract(msgs, existing)

	require.Len(t, set.Updated, 1)
	assert.Equal(t, uint32(8), set.Updated[0].LastEmailUID)
	assert.Equal(t, "fresh", set.Updated[0].LastEmailPreview)
	assert.Equal(t, t2, set.Updated[0].LastEmailAt)
}

func TestExtractAbsentStoredDateAlwaysLoses(t *testing.T) {
	t0 := datePtr(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))

	existing := map[string]types.ProcessedContact{
		"erin@example.com": {Email: "erin@example.com"},
	}
	msgs := []Message{
		{Envelope: envelope(2, "erin@example.com", t0), Preview: "p"},
	}

	set := Extract(msgs, existing)

	require.Len(t, set.Updated, 1)
	assert.Equal(t, t0, set.Updated[0].LastEmailAt)
}

func TestExtractBadSenderDoesNotAbortBatch(t *testing.T) {
	d := datePtr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	msgs := []Message{
		{Envelope: envelope(1, "good@example.com", d)},
		{Envelope: envelope(2, "not an address", d)},
		{Envelope: envelope(3, "also@example.com", d)},
	}

	set := Extract(msgs, nil)

	assert.Len(t, set.Created, 2, "valid envelopes still saved")
	require.Len(t, set.Errors, 1)
	assert.Contains(t, set.Errors[0], "message 2")
}

func TestExtractMissingSender(t *testing.T) {
	set := Extract([]Message{{Envelope: envelope(7, "", nil)}}, nil)

	assert.Empty(t, set.Created)
	require.Len(t, set.Errors, 1)
	assert.Contains(t, set.Errors[0], "missing sender")
}

func TestExtractFillsMissingName(t *testing.T) {
	d := datePtr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	existing := map[string]types.ProcessedContact{
		"frank@example.com": {Email: "frank@example.com", LastEmailAt: d},
	}
	msgs := []Message{
		{Envelope: envelope(1, "Frank <frank@example.com>", datePtr(d.Add(-time.Hour)))},
	}

	set := Extract(msgs, existing)

	require.Len(t, set.Updated, 1)
	assert.Equal(t, "Frank", set.Updated[0].Name)
	assert.Equal(t, d, set.Updated[0].LastEmailAt, "name fill must not advance last-seen fields")
}

func TestPreviewTextFromHTML(t *testing.T) {
	body := &types.Body{HTML: "<p>Hello <b>world</b></p>"}

	assert.Equal(t, "Hello world", PreviewText(body))
}

func TestPreviewTextTruncates(t *testing.T) {
	long := make([]byte, 0, 400)
	for i := 0; i < 400; i++ {
		long = append(long, 'a')
	}
	body := &types.Body{Text: string(long)}

	assert.Len(t, PreviewText(body), previewLimit)
}

func TestPreviewTextNilBody(t *testing.T) {
	assert.Equal(t, "", PreviewText(nil))
}
