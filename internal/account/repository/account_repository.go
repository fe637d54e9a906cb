package repository

import (
	"errors"
	"fmt"
	"time"

	accountdomain "github.com/devspinn/dtown-email/internal/account/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

// Create inserts a new account. At most one active account per user and
// provider: connecting a second one for the same provider is rejected so the
// single-account assumption holds at the data layer.
func (r *accountRepository) Create(account *accountdomain.EmailAccount) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&accountdomain.EmailAccount{}).
			Where("user_id = ? AND provider = ? AND is_active = ?", account.UserID, account.Provider, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("an active %s account is already connected", account.Provider)
		}

		account.ID = uuid.New().String()
		account.CreatedAt = time.Now()
		account.UpdatedAt = time.Now()
		return tx.Create(account).Error
	})
}

func (r *accountRepository) FindActiveByUser(userID string) (*accountdomain.EmailAccount, error) {
	var account accountdomain.EmailAccount
	err := r.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByID(id string) (*accountdomain.EmailAccount, error) {
	var account accountdomain.EmailAccount
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByEmail(email string) (*accountdomain.EmailAccount, error) {
	var account accountdomain.EmailAccount
	err := r.db.Where("email = ? AND is_active = ?", email, true).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) ListByUser(userID string) ([]*accountdomain.EmailAccount, error) {
	var accounts []*accountdomain.EmailAccount
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) Update(account *accountdomain.EmailAccount) error {
	account.UpdatedAt = time.Now()
	return r.db.Save(account).Error
}

func (r *accountRepository) Delete(userID, id string) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&accountdomain.EmailAccount{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("account not found")
	}
	return nil
}
