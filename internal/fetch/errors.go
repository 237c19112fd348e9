package fetch

import (
	"errors"
	"fmt"
	"net"

	"github.com/ImadMoka/Maily-app-v1-sub001/internal/imapconn"
)

// Kind tags a fetch failure with the stage that produced it, so callers can
// report distinct reasons and pick a retry policy without string matching.
type Kind string

const (
	KindConnection  Kind = "connection"
	KindMailbox     Kind = "mailbox"
	KindSearch      Kind = "search"
	KindFetchStream Kind = "fetch-stream"
)

// ErrNoMessages is returned when SEARCH comes back empty. Callers that need
// to distinguish an empty mailbox from a search error can test for it with
// errors.Is.
var ErrNoMessages = errors.New("search returned no messages")

// Error is a fetch failure tagged with the stage it occurred in
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// IsTransient reports whether retrying the whole sync attempt may succeed.
// Connection-stage failures and network timeouts are transient; rejected
// credentials and protocol-stage failures are not.
func IsTransient(err error) bool {
	if errors.Is(err, imapconn.ErrAuth) {
		return false
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == KindConnection
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}

	return false
}
