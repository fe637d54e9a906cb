package domain

import (
	"time"

	authdomain "github.com/devspinn/dtown-email/internal/auth/domain"
	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"

	"golang.org/x/oauth2"
)

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

// EmailAccount is a connected mailbox. At most one active account per user
// and provider; evaluation and sync paths operate on the first active
// account found for the user.
type EmailAccount struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	UserID       string     `json:"user_id" gorm:"index:idx_account_user;not null"`
	Email        string     `json:"email" gorm:"not null"`
	Provider     string     `json:"provider" gorm:"default:gmail;not null"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`

	// IMAP accounts store host credentials instead of OAuth tokens
	IMAPHost     string `json:"imap_host,omitempty"`
	IMAPUsername string `json:"imap_username,omitempty"`
	IMAPPassword string `json:"-"`

	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	IsActive   bool       `json:"is_active" gorm:"default:true"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	User authdomain.User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// Email ownership is declared from this side; the email package cannot
	// reference this one without an import cycle through Credentials.
	Emails []emaildomain.Email `json:"-" gorm:"foreignKey:EmailAccountID;constraint:OnDelete:CASCADE"`
}

// Credentials builds the per-call credential bundle for the mail gateway.
// onRefresh persists refreshed OAuth tokens back to the store.
func (a *EmailAccount) Credentials(onRefresh emaildomain.TokenUpdateFunc) emaildomain.Credentials {
	creds := emaildomain.Credentials{
		AccountID:      a.ID,
		AccessToken:    a.AccessToken,
		RefreshToken:   a.RefreshToken,
		OnTokenRefresh: onRefresh,
		IMAPHost:       a.IMAPHost,
		IMAPUsername:   a.IMAPUsername,
		IMAPPassword:   a.IMAPPassword,
	}
	if a.TokenExpiry != nil {
		creds.TokenExpiry = *a.TokenExpiry
	}
	return creds
}

// ApplyToken copies a refreshed OAuth token onto the account
func (a *EmailAccount) ApplyToken(token *oauth2.Token) {
	a.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		a.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		a.TokenExpiry = &expiry
	}
}
