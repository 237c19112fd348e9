package sync

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImadMoka/Maily-app-v1-sub001/internal/config"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/fetch"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/imapconn"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/store"
)

var headerSection = &imap.BodySectionName{
	BodyPartName: imap.BodyPartName{
		Specifier: imap.HeaderSpecifier,
		Fields:    []string{"From", "Subject", "Date"},
	},
}

// fakeConn serves one scripted mailbox: envelope listings come from
// envelopes, body fetches from bodies keyed by UID
type fakeConn struct {
	envelopes []*imap.Message
	bodies    map[uint32]string
	loggedOut chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{bodies: make(map[uint32]string), loggedOut: make(chan struct{})}
}

func (f *fakeConn) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	return &imap.MailboxStatus{Name: name}, nil
}

func (f *fakeConn) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	seqs := make([]uint32, 0, len(f.envelopes))
	for _, msg := range f.envelopes {
		seqs = append(seqs, msg.SeqNum)
	}
	return seqs, nil
}

func (f *fakeConn) Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	for _, msg := range f.envelopes {
		ch <- msg
	}
	close(ch)
	return nil
}

func (f *fakeConn) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	for uid, raw := range f.bodies {
		if seqset.Contains(uid) {
			ch <- &imap.Message{
				Uid: uid,
				Body: map[*imap.BodySectionName]imap.Literal{
					{}: bytes.NewBufferString(raw),
				},
			}
		}
	}
	close(ch)
	return nil
}

func (f *fakeConn) Logout() error {
	select {
	case <-f.loggedOut:
	default:
		close(f.loggedOut)
	}
	return nil
}

func (f *fakeConn) LoggedOut() <-chan struct{} {
	return f.loggedOut
}

func (f *fakeConn) addMessage(seq, uid uint32, header, body string) {
	f.envelopes = append(f.envelopes, &imap.Message{
		SeqNum: seq,
		Uid:    uid,
		Size:   uint32(len(body)),
		Body: map[*imap.BodySectionName]imap.Literal{
			headerSection: bytes.NewBufferString(header),
		},
	})
	f.bodies[uid] = body
}

func newTestSyncer(t *testing.T, conn *fakeConn) (*Syncer, *store.Store) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{
		StorePath:       filepath.Join(t.TempDir(), "sync.db"),
		SyncMaxMessages: 50,
		SessionTTL:      5 * time.Minute,
		Accounts: []config.AccountConfig{
			{Name: "a1", UserID: "u1", IMAPHost: "imap.example.com", IMAPPort: 993, IMAPUsername: "u"},
		},
	}

	db, err := store.NewDB(cfg.StorePath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := store.NewStore(db, logger)

	cache := imapconn.NewCache(cfg.SessionTTL, logger)
	t.Cleanup(cache.Close)
	cache.Put("u1", "a1", imapconn.NewSession(cfg.Accounts[0].Credentials(), conn))

	fetcher := fetch.NewFetcher(cache, imapconn.NewDialer(logger), logger)
	return NewSyncer(cfg, fetcher, st, logger), st
}

const plainBody = "Content-Type: text/plain\r\n\r\nJust plain text here\r\n"

const htmlBody = "Content-Type: text/html\r\n\r\n<html><body><p>Hello <a href='x'>there</a></p></body></html>\r\n"

func TestSyncAccount(t *testing.T) {
	conn := newFakeConn()
	conn.addMessage(1, 101,
		"From: Alice <alice@example.com>\r\nSubject: old\r\nDate: Sun, 01 Jun 2025 10:00:00 +0000\r\n",
		plainBody)
	conn.addMessage(2, 102,
		"From: ALICE@example.com\r\nSubject: new\r\nDate: Mon, 02 Jun 2025 10:00:00 +0000\r\n",
		htmlBody)
	conn.addMessage(3, 103,
		"From: Bob <bob@example.com>\r\nSubject: hi\r\nDate: Mon, 02 Jun 2025 11:00:00 +0000\r\n",
		plainBody)

	syncer, st := newTestSyncer(t, conn)
	result, err := syncer.SyncAccount(context.Background(), "u1", "a1")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Saved, "two distinct senders after case-normalized dedup")
	assert.Empty(t, result.Errors)

	accountID, err := st.GetAccountID("a1")
	require.NoError(t, err)
	contacts, err := st.GetContacts(accountID)
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	alice := contacts["alice@example.com"]
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, uint32(102), alice.LastEmailUID, "last-seen fields track the newest message")
	assert.Contains(t, alice.LastEmailPreview, "Hello there")
}

func TestSyncAccountBadSenderIsPartialFailure(t *testing.T) {
	conn := newFakeConn()
	conn.addMessage(1, 101,
		"From: broken sender\r\nSubject: junk\r\nDate: Mon, 02 Jun 2025 10:00:00 +0000\r\n",
		plainBody)
	conn.addMessage(2, 102,
		"From: ok@example.com\r\nSubject: fine\r\nDate: Mon, 02 Jun 2025 11:00:00 +0000\r\n",
		plainBody)

	syncer, _ := newTestSyncer(t, conn)
	result, err := syncer.SyncAccount(context.Background(), "u1", "a1")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Saved)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "101")
}

func TestSyncAccountUnknownAccount(t *testing.T) {
	syncer, _ := newTestSyncer(t, newFakeConn())

	_, err := syncer.SyncAccount(context.Background(), "u1", "nope")
	assert.Error(t, err)
}

func TestSyncAccountSecondRunIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	conn.addMessage(1, 101,
		"From: carol@example.com\r\nSubject: hi\r\nDate: Mon, 02 Jun 2025 10:00:00 +0000\r\n",
		plainBody)

	syncer, st := newTestSyncer(t, conn)

	_, err := syncer.SyncAccount(context.Background(), "u1", "a1")
	require.NoError(t, err)
	result, err := syncer.SyncAccount(context.Background(), "u1", "a1")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Saved, "re-syncing the same messages writes nothing")

	accountID, err := st.GetAccountID("a1")
	require.NoError(t, err)
	contacts, err := st.GetContacts(accountID)
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
}
