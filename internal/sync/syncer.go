// Package sync runs the per-account pipeline: fetch envelopes, classify
// bodies, extract contacts, persist the result.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ImadMoka/Maily-app-v1-sub001/internal/classify"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/config"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/contacts"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/fetch"
	"github.com/ImadMoka/Maily-app-v1-sub001/internal/store"
	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

// Syncer synchronizes one account's remote mailbox into the local store.
// It implements task.Runner.
type Syncer struct {
	config      *config.Config
	fetcher     *fetch.Fetcher
	store       *store.Store
	logger      *logrus.Logger
	maxMessages int
}

// NewSyncer creates a new syncer
func NewSyncer(cfg *config.Config, fetcher *fetch.Fetcher, st *store.Store, logger *logrus.Logger) *Syncer {
	return &Syncer{
		config:      cfg,
		fetcher:     fetcher,
		store:       st,
		logger:      logger,
		maxMessages: cfg.SyncMaxMessages,
	}
}

// SyncAccount fetches the account's most recent messages, classifies their
// bodies, and merges the senders into the stored contact set. Per-message
// failures land in the result's error list; only failures that prevent the
// whole batch (connect, open, search, fetch stream) return an error.
func (s *Syncer) SyncAccount(ctx context.Context, userID, accountID string) (types.ContactProcessingResult, error) {
	var result types.ContactProcessingResult
	startedAt := time.Now()

	acc, err := s.config.GetAccountByName(accountID)
	if err != nil {
		return result, err
	}
	creds := acc.Credentials()

	envelopes, err := s.fetcher.FetchEnvelopes(ctx, creds, s.maxMessages)
	if err != nil {
		return result, err
	}
	result.Fetched = len(envelopes)

	storeAccountID, err := s.store.UpsertAccount(acc)
	if err != nil {
		return result, fmt.Errorf("failed to store account: %w", err)
	}

	existing, err := s.store.GetContacts(storeAccountID)
	if err != nil {
		return result, fmt.Errorf("failed to load contacts: %w", err)
	}

	msgs := make([]contacts.Message, 0, len(envelopes))
	for _, envelope := range envelopes {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		msgs = append(msgs, contacts.Message{
			Envelope: envelope,
			Preview:  s.preview(ctx, creds, envelope, &result),
		})
	}

	set := contacts.Extract(msgs, existing)
	result.Errors = append(result.Errors, set.Errors...)

	records := append(set.Created, set.Updated...)
	if err := s.store.SaveContacts(storeAccountID, records); err != nil {
		return result, fmt.Errorf("failed to save contacts: %w", err)
	}
	result.Saved = set.Saved()
	result.Success = true

	if err := s.store.RecordSyncRun(storeAccountID, startedAt, time.Now(), result); err != nil {
		s.logger.WithError(err).WithField("account", accountID).Warn("Failed to record sync run")
	}

	s.logger.WithFields(logrus.Fields{
		"account": accountID,
		"fetched": result.Fetched,
		"saved":   result.Saved,
		"errors":  len(result.Errors),
	}).Info("Synced account")

	return result, nil
}

// preview fetches and classifies one message body and renders its preview
// text. Failures here never abort the batch; they are recorded on the result
// and the message simply syncs without a preview.
func (s *Syncer) preview(ctx context.Context, creds types.Credentials, envelope types.Envelope, result *types.ContactProcessingResult) string {
	body, err := s.fetcher.FetchBody(ctx, creds, envelope.UID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("message %d: %v", envelope.UID, err))
		s.logger.WithError(err).WithField("uid", envelope.UID).Warn("Failed to fetch message body")
		return ""
	}

	content, mimeHint := body.Text, "text/plain"
	if body.HTML != "" {
		content, mimeHint = body.HTML, "text/html"
	}

	detection := classify.Detect(content, mimeHint)
	s.logger.WithFields(logrus.Fields{
		"uid":    envelope.UID,
		"html":   detection.IsHTML,
		"images": detection.HasImages,
		"links":  detection.HasLinks,
		"chars":  detection.CharacterCount,
	}).Debug("Classified message body")

	if detection.CharacterCount == 0 {
		return ""
	}
	return contacts.PreviewText(body)
}
