package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"

	"github.com/ImadMoka/Maily-app-v1-sub001/internal/imapconn"
	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

const defaultMailbox = "INBOX"

// Fetcher retrieves message envelopes and bodies over pooled IMAP sessions
type Fetcher struct {
	cache   *imapconn.Cache
	dial    func(types.Credentials) (*imapconn.Session, error)
	logger  *logrus.Logger
	mailbox string
}

// NewFetcher creates a new fetcher backed by the shared session cache
func NewFetcher(cache *imapconn.Cache, dialer *imapconn.Dialer, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		cache:   cache,
		dial:    dialer.Dial,
		logger:  logger,
		mailbox: defaultMailbox,
	}
}

// FetchEnvelopes lists the most recent messages in the account's inbox,
// bounded to maxCount. Only the header fields the envelope needs (From,
// Subject, Date) plus uid and size are requested, never full bodies.
func (f *Fetcher) FetchEnvelopes(ctx context.Context, creds types.Credentials, maxCount int) ([]types.Envelope, error) {
	session, fresh, err := f.acquire(creds)
	if err != nil {
		return nil, err
	}

	envelopes, err := f.listEnvelopes(ctx, session, maxCount)
	f.release(creds, session, fresh, err)
	if err != nil {
		return nil, err
	}

	return envelopes, nil
}

func (f *Fetcher) listEnvelopes(ctx context.Context, session *imapconn.Session, maxCount int) ([]types.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := session.SelectReadOnly(f.mailbox); err != nil {
		return nil, wrapErr(KindMailbox, fmt.Errorf("failed to open mailbox: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqNums, err := session.SearchAll()
	if err != nil {
		return nil, wrapErr(KindSearch, fmt.Errorf("failed to search mailbox: %w", err))
	}
	if len(seqNums) == 0 {
		return nil, wrapErr(KindSearch, ErrNoMessages)
	}

	// Keep only the most recent maxCount by server ordering, so a huge
	// mailbox never turns into an unbounded fetch
	if maxCount > 0 && len(seqNums) > maxCount {
		seqNums = seqNums[len(seqNums)-maxCount:]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: imap.HeaderSpecifier,
			Fields:    []string{"From", "Subject", "Date"},
		},
		Peek: true,
	}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid, imap.FetchRFC822Size}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- session.Fetch(seqSet, items, messages)
	}()

	var envelopes []types.Envelope
	for msg := range messages {
		acc := &envelopeAccumulator{}

		if literal := msg.GetBody(section); literal != nil {
			acc.onHeader(string(readLiteral(literal, f.logger)))
		}
		acc.onAttributes(msg.Uid, msg.Size)

		envelope, err := acc.complete()
		if err != nil {
			// One malformed message must never abort the whole listing
			f.logger.WithError(err).WithField("seq", msg.SeqNum).Warn("Skipping incomplete message")
			continue
		}
		envelopes = append(envelopes, envelope)
	}

	if err := <-done; err != nil {
		return nil, wrapErr(KindFetchStream, fmt.Errorf("failed to fetch messages: %w", err))
	}

	return envelopes, nil
}

// FetchBody retrieves and parses the full body of one message by UID
func (f *Fetcher) FetchBody(ctx context.Context, creds types.Credentials, uid uint32) (*types.Body, error) {
	session, fresh, err := f.acquire(creds)
	if err != nil {
		return nil, err
	}

	body, err := f.fetchBody(ctx, session, uid)
	f.release(creds, session, fresh, err)
	if err != nil {
		return nil, err
	}

	return body, nil
}

func (f *Fetcher) fetchBody(ctx context.Context, session *imapconn.Session, uid uint32) (*types.Body, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := session.SelectReadOnly(f.mailbox); err != nil {
		return nil, wrapErr(KindMailbox, fmt.Errorf("failed to open mailbox: %w", err))
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- session.UIDFetch(seqSet, items, messages)
	}()

	var raw []byte
	for msg := range messages {
		if literal := msg.GetBody(section); literal != nil {
			raw = readLiteral(literal, f.logger)
		}
	}

	if err := <-done; err != nil {
		return nil, wrapErr(KindFetchStream, fmt.Errorf("failed to fetch message body: %w", err))
	}
	if len(raw) == 0 {
		return nil, wrapErr(KindFetchStream, fmt.Errorf("no body content for uid %d", uid))
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		// Fall back to the raw bytes rather than losing the message
		f.logger.WithError(err).WithField("uid", uid).Debug("Failed to parse MIME, using raw body")
		return &types.Body{Text: string(raw)}, nil
	}

	return &types.Body{Text: env.Text, HTML: env.HTML}, nil
}

// acquire returns a session for the credentials, preferring the shared
// cache. fresh reports whether the session was dialed for this call.
func (f *Fetcher) acquire(creds types.Credentials) (*imapconn.Session, bool, error) {
	if session, ok := f.cache.Get(creds.UserID, creds.AccountID); ok {
		return session, false, nil
	}

	session, err := f.dial(creds)
	if err != nil {
		return nil, false, wrapErr(KindConnection, err)
	}
	return session, true, nil
}

// release settles session ownership after an operation. A fresh session that
// served a successful call is registered into the cache so the next sync for
// this account starts warm; a fresh session whose call failed is closed. A
// borrowed session always stays with the cache.
func (f *Fetcher) release(creds types.Credentials, session *imapconn.Session, fresh bool, opErr error) {
	if !fresh {
		return
	}

	if opErr != nil {
		if err := session.Close(); err != nil {
			f.logger.WithError(err).Debug("Failed to close session after error")
		}
		return
	}

	f.cache.Put(creds.UserID, creds.AccountID, session)
}

// readLiteral drains an IMAP literal into memory
func readLiteral(literal imap.Literal, logger *logrus.Logger) []byte {
	body, err := io.ReadAll(literal)
	if err != nil {
		logger.WithError(err).Error("Error reading literal")
	}
	return body
}
