package repository

import (
	accountdomain "github.com/devspinn/dtown-email/internal/account/domain"
)

// AccountRepository defines the interface for email account persistence
type AccountRepository interface {
	Create(account *accountdomain.EmailAccount) error
	// FindActiveByUser returns the user's first active account, or nil
	FindActiveByUser(userID string) (*accountdomain.EmailAccount, error)
	FindByID(id string) (*accountdomain.EmailAccount, error)
	FindByEmail(email string) (*accountdomain.EmailAccount, error)
	ListByUser(userID string) ([]*accountdomain.EmailAccount, error)
	Update(account *accountdomain.EmailAccount) error
	Delete(userID, id string) error
}
