package usecase

import (
	"context"

	accountdomain "github.com/devspinn/dtown-email/internal/account/domain"
	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"
)

// WatchGateway is the push-notification capability of the mail gateway
type WatchGateway interface {
	Watch(ctx context.Context, creds emaildomain.Credentials, topicName string) error
	StopWatch(ctx context.Context, creds emaildomain.Credentials) error
}

// AccountUsecase defines the interface for email account management
type AccountUsecase interface {
	// GoogleAuthURL returns the OAuth consent URL to start a Gmail connection
	GoogleAuthURL(state string) string
	// ConnectGoogle exchanges an OAuth authorization code and stores the
	// resulting account with its tokens
	ConnectGoogle(ctx context.Context, userID, code string) (*accountdomain.EmailAccount, error)
	// ConnectIMAP stores a host-credential account usable for sync and rule
	// testing only
	ConnectIMAP(ctx context.Context, userID, email, host, username, password string) (*accountdomain.EmailAccount, error)

	ListAccounts(userID string) ([]*accountdomain.EmailAccount, error)
	// ActiveAccount returns the user's first active account or an error when
	// none is connected
	ActiveAccount(userID string) (*accountdomain.EmailAccount, error)
	Disconnect(userID, accountID string) error

	// CredentialsFor builds gateway credentials whose refresh callback
	// persists rotated tokens back to the store
	CredentialsFor(account *accountdomain.EmailAccount) emaildomain.Credentials

	// Watch enables Gmail push notifications for the account's inbox
	Watch(ctx context.Context, userID, accountID string) error
	StopWatch(ctx context.Context, userID, accountID string) error
}
