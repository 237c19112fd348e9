package fetch

import (
	"errors"

	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

// envelopeAccumulator joins the two parts of one fetched message that the
// server delivers as separate events and in either order: the raw header
// literal and the attribute set (uid, size). The Envelope is constructed
// only once the message's completion event fires with both parts present.
type envelopeAccumulator struct {
	header    *string
	uid       uint32
	size      uint32
	haveAttrs bool
}

func (a *envelopeAccumulator) onHeader(raw string) {
	a.header = &raw
}

func (a *envelopeAccumulator) onAttributes(uid, size uint32) {
	a.uid = uid
	a.size = size
	a.haveAttrs = true
}

// complete builds the Envelope, failing if either part never arrived
func (a *envelopeAccumulator) complete() (types.Envelope, error) {
	if a.header == nil {
		return types.Envelope{}, errors.New("message completed without header part")
	}
	if !a.haveAttrs {
		return types.Envelope{}, errors.New("message completed without attributes")
	}

	fields := parseHeaderFields(*a.header)
	return types.Envelope{
		UID:     a.uid,
		Subject: fields.Subject,
		From:    fields.From,
		Date:    fields.Date,
		Size:    a.size,
	}, nil
}
