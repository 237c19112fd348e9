package imapconn

import (
	"time"

	"github.com/emersion/go-imap"

	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

// conn is the subset of the go-imap client the session layer depends on.
type conn interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
	LoggedOut() <-chan struct{}
}

// Session is an authenticated, open connection to a remote mailbox server.
// It is exclusively owned by the Cache while cached and only borrowed by
// callers during a fetch.
type Session struct {
	UserID    string
	AccountID string
	CreatedAt time.Time

	conn conn
}

// NewSession wraps an authenticated connection. Most callers obtain sessions
// through Dialer.Dial rather than calling this directly.
func NewSession(creds types.Credentials, c conn) *Session {
	return &Session{
		UserID:    creds.UserID,
		AccountID: creds.AccountID,
		CreatedAt: time.Now(),
		conn:      c,
	}
}

// SelectReadOnly opens a mailbox without marking messages as seen
func (s *Session) SelectReadOnly(mailbox string) (*imap.MailboxStatus, error) {
	return s.conn.Select(mailbox, true)
}

// SearchAll returns the sequence numbers of every message in the selected mailbox
func (s *Session) SearchAll() ([]uint32, error) {
	return s.conn.Search(&imap.SearchCriteria{})
}

// Fetch streams messages for a sequence set into ch
func (s *Session) Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	return s.conn.Fetch(seqset, items, ch)
}

// UIDFetch streams messages addressed by UID into ch
func (s *Session) UIDFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	return s.conn.UidFetch(seqset, items, ch)
}

// Closed is signalled when the underlying transport ends, whether by logout,
// server disconnect, or network error.
func (s *Session) Closed() <-chan struct{} {
	return s.conn.LoggedOut()
}

// Close logs out and tears down the transport
func (s *Session) Close() error {
	return s.conn.Logout()
}
