package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// StringArray stores a small set of label IDs as a JSON array in a text column
type StringArray []string

// Value implements driver.Valuer
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	if len(bytes) == 0 {
		*a = []string{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Contains reports whether the array holds the given value
func (a StringArray) Contains(v string) bool {
	for _, s := range a {
		if s == v {
			return true
		}
	}
	return false
}

// Email is a locally cached copy of a provider message. The cache is a
// mirror, not an append-log: re-syncing an already cached message updates
// its mutable fields in place. Rows are never deleted by the sync path.
type Email struct {
	ID              string      `json:"id" gorm:"primaryKey"`
	GmailMessageID  string      `json:"gmail_message_id" gorm:"uniqueIndex;not null"`
	EmailAccountID  string      `json:"email_account_id" gorm:"index;not null"`
	ThreadID        string      `json:"thread_id" gorm:"index;not null"`
	From            string      `json:"from" gorm:"column:from_address;not null"`
	To              string      `json:"to" gorm:"column:to_address"`
	Subject         string      `json:"subject"`
	Snippet         string      `json:"snippet"`
	BodyText        string      `json:"body_text"`
	BodyHTML        string      `json:"body_html"`
	LabelIDs        StringArray `json:"label_ids" gorm:"type:text"`
	ReceivedAt      time.Time   `json:"received_at" gorm:"index;not null"`
	IsRead          bool        `json:"is_read" gorm:"default:false"`
	IsStarred       bool        `json:"is_starred" gorm:"default:false"`
	IsMuted         bool        `json:"is_muted" gorm:"default:false"` // thread-mute marker, kept locally so label renames cannot break propagation
	LastProcessedAt *time.Time  `json:"last_processed_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// ClassificationText returns the text handed to the classifier: the plain
// body, falling back to the snippet when no body text exists.
func (e *Email) ClassificationText() string {
	if e.BodyText != "" {
		return e.BodyText
	}
	if e.Snippet != "" {
		return e.Snippet
	}
	return "[No body text]"
}
