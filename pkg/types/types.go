package types

import "time"

// Credentials identifies and authenticates one remote mailbox.
type Credentials struct {
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	UseTLS    bool   `json:"use_tls"`
}

// Envelope is the metadata of one fetched message, without its body.
// Immutable once constructed.
type Envelope struct {
	UID     uint32     `json:"uid"`
	Subject string     `json:"subject,omitempty"`
	From    string     `json:"from,omitempty"`
	Date    *time.Time `json:"date,omitempty"`
	Size    uint32     `json:"size,omitempty"`
}

// Body holds the parsed content of one message.
type Body struct {
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`
}

// Detection is the classifier output for one message body.
type Detection struct {
	IsHTML         bool `json:"is_html"`
	HasImages      bool `json:"has_images"`
	HasLinks       bool `json:"has_links"`
	CharacterCount int  `json:"character_count"`
}

// ProcessedContact is a deduplicated contact record derived from fetched
// messages. Email is the dedup key, stored case-normalized.
type ProcessedContact struct {
	Email            string     `json:"email"`
	Name             string     `json:"name,omitempty"`
	LastEmailUID     uint32     `json:"last_email_uid,omitempty"`
	LastEmailPreview string     `json:"last_email_preview,omitempty"`
	LastEmailAt      *time.Time `json:"last_email_at,omitempty"`
}

// ContactProcessingResult aggregates the outcome of one account sync.
type ContactProcessingResult struct {
	Success bool     `json:"success"`
	Fetched int      `json:"fetched"`
	Saved   int      `json:"saved"`
	Errors  []string `json:"errors,omitempty"`
}
