package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/ImadMoka/Maily-app-v1-sub001/internal/config"
	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

const (
	contactCacheSize = 128
	contactCacheTTL  = time.Minute
)

// Store provides methods for persisting and retrieving synced data
type Store struct {
	db     *DB
	logger *logrus.Logger

	// Read cache in front of GetContacts, invalidated on writes. Repeated
	// syncs hit this instead of re-reading the whole contact set.
	contactCache *expirable.LRU[int64, map[string]types.ProcessedContact]
}

// NewStore creates a new store instance
func NewStore(db *DB, logger *logrus.Logger) *Store {
	return &Store{
		db:           db,
		logger:       logger,
		contactCache: expirable.NewLRU[int64, map[string]types.ProcessedContact](contactCacheSize, nil, contactCacheTTL),
	}
}

// UpsertAccount upserts an account in the store
func (s *Store) UpsertAccount(acc *config.AccountConfig) (int64, error) {
	query := `
		INSERT INTO accounts (user_id, name, imap_host, imap_port, imap_username, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			user_id = excluded.user_id,
			imap_host = excluded.imap_host,
			imap_port = excluded.imap_port,
			imap_username = excluded.imap_username,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.DB().Exec(query, acc.UserID, acc.Name, acc.IMAPHost, acc.IMAPPort, acc.IMAPUsername); err != nil {
		return 0, fmt.Errorf("failed to upsert account: %w", err)
	}

	// last_insert_rowid is stale when the conflict path takes the UPDATE
	// branch, so the id has to be resolved explicitly
	var id int64
	if err := s.db.DB().QueryRow("SELECT id FROM accounts WHERE name = ?", acc.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to get account ID: %w", err)
	}

	return id, nil
}

// GetAccountID returns the account ID by name
func (s *Store) GetAccountID(name string) (int64, error) {
	var id int64
	err := s.db.DB().QueryRow("SELECT id FROM accounts WHERE name = ?", name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("account not found: %s", name)
	}
	return id, nil
}

// GetContacts returns an account's stored contacts keyed by normalized email
func (s *Store) GetContacts(accountID int64) (map[string]types.ProcessedContact, error) {
	if cached, ok := s.contactCache.Get(accountID); ok {
		return cached, nil
	}

	query := `
		SELECT email, COALESCE(name, ''), COALESCE(last_email_uid, 0), COALESCE(last_email_preview, ''), last_email_at
		FROM contacts
		WHERE account_id = ?
	`
	rows, err := s.db.DB().Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	contacts := make(map[string]types.ProcessedContact)
	for rows.Next() {
		var contact types.ProcessedContact
		var lastAt sql.NullString

		err := rows.Scan(
			&contact.Email,
			&contact.Name,
			&contact.LastEmailUID,
			&contact.LastEmailPreview,
			&lastAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}

		if lastAt.Valid {
			t, err := time.Parse(time.RFC3339, lastAt.String)
			if err == nil {
				contact.LastEmailAt = &t
			}
		}

		contacts[contact.Email] = contact
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read contacts: %w", err)
	}

	s.contactCache.Add(accountID, contacts)
	return contacts, nil
}

// SaveContacts writes created and updated contact records for an account.
// The recency guard in the upsert mirrors the extractor's merge rule, so a
// stored last_email_at is never regressed even by a stale writer.
func (s *Store) SaveContacts(accountID int64, records []types.ProcessedContact) error {
	query := `
		INSERT INTO contacts (account_id, email, name, last_email_uid, last_email_preview, last_email_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(account_id, email) DO UPDATE SET
			name = CASE WHEN contacts.name IS NULL OR contacts.name = '' THEN excluded.name ELSE contacts.name END,
			last_email_uid = CASE WHEN contacts.last_email_at IS NULL OR excluded.last_email_at > contacts.last_email_at THEN excluded.last_email_uid ELSE contacts.last_email_uid END,
			last_email_preview = CASE WHEN contacts.last_email_at IS NULL OR excluded.last_email_at > contacts.last_email_at THEN excluded.last_email_preview ELSE contacts.last_email_preview END,
			last_email_at = CASE WHEN contacts.last_email_at IS NULL OR excluded.last_email_at > contacts.last_email_at THEN excluded.last_email_at ELSE contacts.last_email_at END,
			updated_at = CURRENT_TIMESTAMP
	`
	for _, record := range records {
		var lastAt interface{}
		if record.LastEmailAt != nil {
			lastAt = record.LastEmailAt.UTC().Format(time.RFC3339)
		}

		_, err := s.db.DB().Exec(query,
			accountID,
			record.Email,
			record.Name,
			record.LastEmailUID,
			record.LastEmailPreview,
			lastAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert contact %s: %w", record.Email, err)
		}
	}

	s.contactCache.Remove(accountID)
	return nil
}

// RecordSyncRun archives the outcome of one completed sync task
func (s *Store) RecordSyncRun(accountID int64, startedAt, finishedAt time.Time, result types.ContactProcessingResult) error {
	errorsJSON, err := json.Marshal(result.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	query := `
		INSERT INTO sync_runs (account_id, started_at, finished_at, success, fetched, saved, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.DB().Exec(query,
		accountID,
		startedAt.UTC().Format(time.RFC3339),
		finishedAt.UTC().Format(time.RFC3339),
		result.Success,
		result.Fetched,
		result.Saved,
		string(errorsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}

	return nil
}
