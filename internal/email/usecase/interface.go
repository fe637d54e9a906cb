package usecase

import (
	"context"

	accountdomain "github.com/devspinn/dtown-email/internal/account/domain"
	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"
)

// SyncResult summarizes one sync run. Counts are always reported, even
// under partial failure.
type SyncResult struct {
	Fetched   int `json:"fetched"`
	NewEmails int `json:"new_emails"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// EmailUsecase is the sync orchestrator and cache query surface.
// Sync never triggers rule evaluation; the two are decoupled so preview
// flows can populate the cache without side effects.
type EmailUsecase interface {
	// SyncEmails syncs the user's active account
	SyncEmails(ctx context.Context, userID string, maxMessages int) (*SyncResult, error)
	// SyncAccount syncs a specific account
	SyncAccount(ctx context.Context, account *accountdomain.EmailAccount, maxMessages int) (*SyncResult, error)

	ListEmails(userID string, limit, offset int) ([]*emaildomain.Email, int64, error)
	GetEmail(userID, emailID string) (*emaildomain.Email, error)
}
