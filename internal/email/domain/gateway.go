package domain

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc persists a refreshed OAuth token for an account
type TokenUpdateFunc func(token *oauth2.Token) error

// Credentials carries the per-account OAuth state a gateway call needs.
// OnTokenRefresh is invoked whenever the underlying token source mints a
// new access token, so the caller can persist it.
type Credentials struct {
	AccountID      string // stable id used for per-account caches
	AccessToken    string
	RefreshToken   string
	TokenExpiry    time.Time
	OnTokenRefresh TokenUpdateFunc

	// IMAP accounts authenticate with host credentials instead of OAuth
	IMAPHost     string
	IMAPUsername string
	IMAPPassword string
}

// Message is a provider-neutral view of a fetched message
type Message struct {
	ID         string
	ThreadID   string
	LabelIDs   []string
	Snippet    string
	From       string
	To         string
	Subject    string
	BodyText   string
	BodyHTML   string
	ReceivedAt time.Time
	IsRead     bool
	IsStarred  bool
}

// MailGateway is the narrow capability interface the core consumes from the
// mail provider. All calls are keyed by provider-native identifiers.
// AddLabel is idempotent at the provider: re-adding an existing label is a
// no-op.
type MailGateway interface {
	FetchRecent(ctx context.Context, creds Credentials, limit int) ([]*Message, error)
	GetMessage(ctx context.Context, creds Credentials, messageID string) (*Message, error)
	AddLabel(ctx context.Context, creds Credentials, messageID, labelName string) error
	RemoveInboxMarker(ctx context.Context, creds Credentials, messageID string) error
	MuteThread(ctx context.Context, creds Credentials, threadID string) error
	DeleteMessage(ctx context.Context, creds Credentials, messageID string) error
	GetOrCreateLabel(ctx context.Context, creds Credentials, name string) (string, error)
}

// MailSource is the read-only subset of MailGateway. Non-Gmail (IMAP)
// accounts implement only this: their messages can be synced and used for
// rule testing, but rule actions require a full gateway.
type MailSource interface {
	FetchRecent(ctx context.Context, creds Credentials, limit int) ([]*Message, error)
}
