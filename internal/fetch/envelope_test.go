package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorJoinsInEitherOrder(t *testing.T) {
	header := "Subject: hi\r\nFrom: a@example.com\r\n"

	first := &envelopeAccumulator{}
	first.onHeader(header)
	first.onAttributes(42, 1024)

	second := &envelopeAccumulator{}
	second.onAttributes(42, 1024)
	second.onHeader(header)

	e1, err := first.complete()
	require.NoError(t, err)
	e2, err := second.complete()
	require.NoError(t, err)

	assert.Equal(t, e1, e2)
	assert.Equal(t, uint32(42), e1.UID)
	assert.Equal(t, uint32(1024), e1.Size)
	assert.Equal(t, "hi", e1.Subject)
	assert.Equal(t, "a@example.com", e1.From)
}

func TestAccumulatorMissingHeaderFails(t *testing.T) {
	acc := &envelopeAccumulator{}
	acc.onAttributes(1, 10)

	_, err := acc.complete()
	assert.ErrorContains(t, err, "without header")
}

func TestAccumulatorMissingAttributesFails(t *testing.T) {
	acc := &envelopeAccumulator{}
	acc.onHeader("Subject: x\r\n")

	_, err := acc.complete()
	assert.ErrorContains(t, err, "without attributes")
}

func TestAccumulatorEmptyHeaderIsStillAPart(t *testing.T) {
	// An empty header block is a delivered part, distinct from a missing one
	acc := &envelopeAccumulator{}
	acc.onHeader("")
	acc.onAttributes(5, 0)

	envelope, err := acc.complete()
	require.NoError(t, err)
	assert.Equal(t, uint32(5), envelope.UID)
	assert.Empty(t, envelope.Subject)
}
