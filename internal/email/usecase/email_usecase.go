package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	accountdomain "github.com/devspinn/dtown-email/internal/account/domain"
	accountrepo "github.com/devspinn/dtown-email/internal/account/repository"
	accountusecase "github.com/devspinn/dtown-email/internal/account/usecase"
	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"
	"github.com/devspinn/dtown-email/internal/email/repository"
	"github.com/devspinn/dtown-email/pkg/config"
)

// emailUsecase implements EmailUsecase interface
type emailUsecase struct {
	emailRepo      repository.EmailRepository
	accountRepo    accountrepo.AccountRepository
	accountUsecase accountusecase.AccountUsecase
	gateway        emaildomain.MailGateway
	imapSource     emaildomain.MailSource
	config         *config.Config
}

// NewEmailUsecase creates a new instance of emailUsecase
func NewEmailUsecase(emailRepo repository.EmailRepository, accountRepo accountrepo.AccountRepository, accountUc accountusecase.AccountUsecase, gateway emaildomain.MailGateway, imapSource emaildomain.MailSource, cfg *config.Config) EmailUsecase {
	return &emailUsecase{
		emailRepo:      emailRepo,
		accountRepo:    accountRepo,
		accountUsecase: accountUc,
		gateway:        gateway,
		imapSource:     imapSource,
		config:         cfg,
	}
}

func (u *emailUsecase) SyncEmails(ctx context.Context, userID string, maxMessages int) (*SyncResult, error) {
	account, err := u.accountUsecase.ActiveAccount(userID)
	if err != nil {
		return nil, err
	}
	return u.SyncAccount(ctx, account, maxMessages)
}

func (u *emailUsecase) SyncAccount(ctx context.Context, account *accountdomain.EmailAccount, maxMessages int) (*SyncResult, error) {
	if maxMessages <= 0 {
		maxMessages = u.config.DefaultSyncSize
	}

	creds := u.accountUsecase.CredentialsFor(account)

	var messages []*emaildomain.Message
	var err error
	switch account.Provider {
	case accountdomain.ProviderIMAP:
		messages, err = u.imapSource.FetchRecent(ctx, creds, maxMessages)
	default:
		messages, err = u.gateway.FetchRecent(ctx, creds, maxMessages)
	}
	if err != nil {
		// Gateway unreachable: the whole sync fails
		return nil, fmt.Errorf("unable to fetch messages: %w", err)
	}

	result := &SyncResult{Fetched: len(messages)}

	for _, message := range messages {
		created, cached, err := u.emailRepo.Upsert(account.ID, message)
		if err != nil {
			log.Printf("Failed to sync message %s: %v", message.ID, err)
			result.Failed++
			continue
		}
		if created {
			result.NewEmails++
			// A new message landing in an already muted thread inherits the
			// mute flag so evaluation can skip it without re-checking
			// provider labels.
			if muted, err := u.emailRepo.ThreadMuted(account.ID, cached.ThreadID); err == nil && muted {
				if err := u.emailRepo.MarkMuted(cached.ID); err != nil {
					log.Printf("Failed to propagate mute to email %s: %v", cached.ID, err)
				}
			}
		} else {
			result.Updated++
		}
	}

	now := time.Now()
	account.LastSyncAt = &now
	if err := u.accountRepo.Update(account); err != nil {
		log.Printf("Failed to update last sync time for account %s: %v", account.ID, err)
	}

	log.Printf("Sync complete for %s: %d new, %d updated, %d failed",
		account.Email, result.NewEmails, result.Updated, result.Failed)
	return result, nil
}

func (u *emailUsecase) ListEmails(userID string, limit, offset int) ([]*emaildomain.Email, int64, error) {
	account, err := u.accountUsecase.ActiveAccount(userID)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	return u.emailRepo.ListByAccount(account.ID, limit, offset)
}

func (u *emailUsecase) GetEmail(userID, emailID string) (*emaildomain.Email, error) {
	account, err := u.accountUsecase.ActiveAccount(userID)
	if err != nil {
		return nil, err
	}

	email, err := u.emailRepo.FindByID(emailID)
	if err != nil {
		return nil, err
	}
	if email == nil || email.EmailAccountID != account.ID {
		return nil, errors.New("email not found")
	}
	return email, nil
}
