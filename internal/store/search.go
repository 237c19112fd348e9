package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

// SearchOptions contains contact search parameters
type SearchOptions struct {
	AccountID *int64
	Query     *string
	SeenSince *time.Time
	Limit     int
}

// SearchContacts performs a search over stored contacts for the presentation
// layer
func (s *Store) SearchContacts(opts SearchOptions) ([]types.ProcessedContact, error) {
	var conditions []string
	var args []interface{}

	// Build WHERE clause
	if opts.AccountID != nil {
		conditions = append(conditions, "account_id = ?")
		args = append(args, *opts.AccountID)
	}

	if opts.Query != nil {
		conditions = append(conditions, "(email LIKE ? OR name LIKE ?)")
		searchTerm := "%" + *opts.Query + "%"
		args = append(args, searchTerm, searchTerm)
	}

	if opts.SeenSince != nil {
		conditions = append(conditions, "last_email_at >= ?")
		args = append(args, opts.SeenSince.UTC().Format(time.RFC3339))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT email, COALESCE(name, ''), COALESCE(last_email_uid, 0), COALESCE(last_email_preview, ''), COALESCE(last_email_at, '')
		FROM contacts
		%s
		ORDER BY last_email_at DESC
		LIMIT ?
	`, whereClause)
	args = append(args, limit)

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}
	defer rows.Close()

	var results []types.ProcessedContact
	for rows.Next() {
		var contact types.ProcessedContact
		var lastAt string

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

		if lastAt != "" {
			if t, err := time.Parse(time.RFC3339, lastAt); err == nil {
				contact.LastEmailAt = &t
			}
		}

		results = append(results, contact)
	}

	return results, rows.Err()
}
