package repository

import (
	"time"

	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"
)

// EmailRepository defines the interface for the local email cache
type EmailRepository interface {
	// Upsert mirrors a fetched provider message into the cache: insert when
	// the provider message id is unseen, otherwise update mutable fields in
	// place. Returns whether a new row was created.
	Upsert(accountID string, message *emaildomain.Message) (created bool, email *emaildomain.Email, err error)

	FindByID(id string) (*emaildomain.Email, error)
	FindByMessageID(gmailMessageID string) (*emaildomain.Email, error)

	// ListByAccount returns cached emails newest first
	ListByAccount(accountID string, limit, offset int) ([]*emaildomain.Email, int64, error)
	// ListRecent returns the most recent limit cached emails for an account
	ListRecent(accountID string, limit int) ([]*emaildomain.Email, error)
	// ListUnprocessed returns cached emails with no processed timestamp,
	// oldest first so thread mute propagation sees thread heads first
	ListUnprocessed(accountID string, limit int) ([]*emaildomain.Email, error)
	// OldestInThread returns the first received cached email of a thread
	OldestInThread(accountID, threadID string) (*emaildomain.Email, error)
	// ThreadMuted reports whether any cached email of the thread carries the
	// internal mute flag
	ThreadMuted(accountID, threadID string) (bool, error)

	MarkProcessed(id string, at time.Time) error
	MarkMuted(id string) error
}
