package imapconn

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

// ErrAuth marks a login rejection. Retrying with the same credentials will
// not help, so callers must not treat it as a transient connection failure.
var ErrAuth = errors.New("imap authentication rejected")

// Dialer establishes authenticated IMAP sessions. Dial attempts are routed
// through a per-host circuit breaker so a flapping server fails fast instead
// of eating a full DNS/TLS round trip on every sync attempt.
type Dialer struct {
	logger *logrus.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewDialer creates a new dialer
func NewDialer(logger *logrus.Logger) *Dialer {
	return &Dialer{
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Dial connects to the configured IMAP server and logs in
func (d *Dialer) Dial(creds types.Credentials) (*Session, error) {
	cb := d.breaker(creds.Host)

	v, err := cb.Execute(func() (interface{}, error) {
		return d.dial(creds)
	})
	if err != nil {
		return nil, err
	}

	return v.(*Session), nil
}

func (d *Dialer) dial(creds types.Credentials) (*Session, error) {
	addr := fmt.Sprintf("%s:%d", creds.Host, creds.Port)

	var (
		cl  *client.Client
		err error
	)
	if creds.UseTLS {
		cl, err = client.DialTLS(addr, &tls.Config{
			ServerName: creds.Host,
			MinVersion: tls.VersionTLS12,
		})
	} else {
		cl, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := cl.Login(creds.Username, creds.Password); err != nil {
		d.logger.WithError(err).WithField("account", creds.AccountID).Error("Failed to login to IMAP server")
		cl.Logout() //nolint:errcheck
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	d.logger.WithFields(logrus.Fields{
		"account": creds.AccountID,
		"host":    creds.Host,
	}).Info("Connected to IMAP server")

	return NewSession(creds, cl), nil
}

// breaker returns the circuit breaker for a host, creating it on first use
func (d *Dialer) breaker(host string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.breakers[host]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: host,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
		d.breakers[host] = cb
	}
	return cb
}
