package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	accountdomain "github.com/devspinn/dtown-email/internal/account/domain"
	"github.com/devspinn/dtown-email/internal/account/repository"
	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"
	"github.com/devspinn/dtown-email/pkg/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// gmailScopes covers reading, labeling and archiving messages plus the
// user's email address for account identification.
var gmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/userinfo.email",
}

// accountUsecase implements AccountUsecase interface
type accountUsecase struct {
	accountRepo  repository.AccountRepository
	watchGateway WatchGateway
	config       *config.Config
	oauthConfig  *oauth2.Config
}

// NewAccountUsecase creates a new instance of accountUsecase
func NewAccountUsecase(accountRepo repository.AccountRepository, watchGateway WatchGateway, cfg *config.Config) AccountUsecase {
	return &accountUsecase{
		accountRepo:  accountRepo,
		watchGateway: watchGateway,
		config:       cfg,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       gmailScopes,
			Endpoint:     google.Endpoint,
		},
	}
}

func (u *accountUsecase) GoogleAuthURL(state string) string {
	// AccessTypeOffline + consent prompt so Google issues a refresh token
	return u.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// googleUserInfo is the userinfo endpoint response
type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
}

func (u *accountUsecase) ConnectGoogle(ctx context.Context, userID, code string) (*accountdomain.EmailAccount, error) {
	token, err := u.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange authorization code: %v", err)
	}
	if token.RefreshToken == "" {
		return nil, errors.New("google did not return a refresh token; reconnect with consent")
	}

	// Resolve which mailbox these tokens belong to
	client := u.oauthConfig.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("unable to fetch account info: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to fetch account info: status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("unable to decode account info: %v", err)
	}
	if info.Email == "" {
		return nil, errors.New("google account info is missing an email address")
	}

	account := &accountdomain.EmailAccount{
		UserID:       userID,
		Email:        info.Email,
		Provider:     accountdomain.ProviderGmail,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IsActive:     true,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		account.TokenExpiry = &expiry
	}

	if err := u.accountRepo.Create(account); err != nil {
		return nil, err
	}

	log.Printf("Connected Gmail account %s for user %s", info.Email, userID)
	return account, nil
}

func (u *accountUsecase) ConnectIMAP(ctx context.Context, userID, email, host, username, password string) (*accountdomain.EmailAccount, error) {
	if email == "" || host == "" || username == "" || password == "" {
		return nil, errors.New("email, host, username and password are required")
	}

	account := &accountdomain.EmailAccount{
		UserID:       userID,
		Email:        email,
		Provider:     accountdomain.ProviderIMAP,
		IMAPHost:     host,
		IMAPUsername: username,
		IMAPPassword: password,
		IsActive:     true,
	}
	if err := u.accountRepo.Create(account); err != nil {
		return nil, err
	}

	log.Printf("Connected IMAP account %s for user %s", email, userID)
	return account, nil
}

func (u *accountUsecase) ListAccounts(userID string) ([]*accountdomain.EmailAccount, error) {
	return u.accountRepo.ListByUser(userID)
}

func (u *accountUsecase) ActiveAccount(userID string) (*accountdomain.EmailAccount, error) {
	account, err := u.accountRepo.FindActiveByUser(userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.New("no email account connected")
	}
	return account, nil
}

func (u *accountUsecase) Disconnect(userID, accountID string) error {
	return u.accountRepo.Delete(userID, accountID)
}

func (u *accountUsecase) CredentialsFor(account *accountdomain.EmailAccount) emaildomain.Credentials {
	return account.Credentials(func(token *oauth2.Token) error {
		fresh, err := u.accountRepo.FindByID(account.ID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return errors.New("account no longer exists")
		}
		fresh.ApplyToken(token)
		return u.accountRepo.Update(fresh)
	})
}

func (u *accountUsecase) Watch(ctx context.Context, userID, accountID string) error {
	account, err := u.ownedGmailAccount(userID, accountID)
	if err != nil {
		return err
	}
	if u.config.GoogleProjectID == "" {
		return errors.New("push notifications are not configured")
	}

	topic := fmt.Sprintf("projects/%s/topics/%s", u.config.GoogleProjectID, u.config.GooglePubSubTopic)
	return u.watchGateway.Watch(ctx, u.CredentialsFor(account), topic)
}

func (u *accountUsecase) StopWatch(ctx context.Context, userID, accountID string) error {
	account, err := u.ownedGmailAccount(userID, accountID)
	if err != nil {
		return err
	}
	return u.watchGateway.StopWatch(ctx, u.CredentialsFor(account))
}

func (u *accountUsecase) ownedGmailAccount(userID, accountID string) (*accountdomain.EmailAccount, error) {
	account, err := u.accountRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil || account.UserID != userID {
		return nil, errors.New("account not found")
	}
	if account.Provider != accountdomain.ProviderGmail {
		return nil, errors.New("push notifications require a Gmail account")
	}
	return account, nil
}
