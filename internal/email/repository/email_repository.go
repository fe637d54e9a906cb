package repository

import (
	"errors"
	"time"

	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// emailRepository implements EmailRepository interface
type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new instance of emailRepository
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{
		db: db,
	}
}

func (r *emailRepository) Upsert(accountID string, message *emaildomain.Message) (bool, *emaildomain.Email, error) {
	var existing emaildomain.Email
	err := r.db.Where("gmail_message_id = ?", message.ID).First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		email := &emaildomain.Email{
			ID:             uuid.New().String(),
			GmailMessageID: message.ID,
			EmailAccountID: accountID,
			ThreadID:       message.ThreadID,
			From:           message.From,
			To:             message.To,
			Subject:        message.Subject,
			Snippet:        message.Snippet,
			BodyText:       message.BodyText,
			BodyHTML:       message.BodyHTML,
			LabelIDs:       emaildomain.StringArray(message.LabelIDs),
			ReceivedAt:     message.ReceivedAt,
			IsRead:         message.IsRead,
			IsStarred:      message.IsStarred,
			CreatedAt:      time.Now(),
		}
		if err := r.db.Create(email).Error; err != nil {
			return false, nil, err
		}
		return true, email, nil
	} else if err != nil {
		return false, nil, err
	}

	// Mirror semantics: refresh mutable fields only. The internal mute flag
	// and processed timestamp are ours, not the provider's, so they stay.
	existing.LabelIDs = emaildomain.StringArray(message.LabelIDs)
	existing.IsRead = message.IsRead
	existing.IsStarred = message.IsStarred
	existing.Snippet = message.Snippet
	existing.BodyText = message.BodyText
	existing.BodyHTML = message.BodyHTML
	if err := r.db.Save(&existing).Error; err != nil {
		return false, nil, err
	}
	return false, &existing, nil
}

func (r *emailRepository) FindByID(id string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Where("id = ?", id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) FindByMessageID(gmailMessageID string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Where("gmail_message_id = ?", gmailMessageID).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) ListByAccount(accountID string, limit, offset int) ([]*emaildomain.Email, int64, error) {
	var total int64
	if err := r.db.Model(&emaildomain.Email{}).Where("email_account_id = ?", accountID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var emails []*emaildomain.Email
	err := r.db.Where("email_account_id = ?", accountID).
		Order("received_at DESC").
		Limit(limit).Offset(offset).
		Find(&emails).Error
	return emails, total, err
}

func (r *emailRepository) ListRecent(accountID string, limit int) ([]*emaildomain.Email, error) {
	var emails []*emaildomain.Email
	err := r.db.Where("email_account_id = ?", accountID).
		Order("received_at DESC").
		Limit(limit).
		Find(&emails).Error
	return emails, err
}

func (r *emailRepository) ListUnprocessed(accountID string, limit int) ([]*emaildomain.Email, error) {
	var emails []*emaildomain.Email
	query := r.db.Where("email_account_id = ? AND last_processed_at IS NULL", accountID).
		Order("received_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&emails).Error
	return emails, err
}

func (r *emailRepository) OldestInThread(accountID, threadID string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Where("email_account_id = ? AND thread_id = ?", accountID, threadID).
		Order("received_at ASC").First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) ThreadMuted(accountID, threadID string) (bool, error) {
	var count int64
	err := r.db.Model(&emaildomain.Email{}).
		Where("email_account_id = ? AND thread_id = ? AND is_muted = ?", accountID, threadID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *emailRepository) MarkProcessed(id string, at time.Time) error {
	return r.db.Model(&emaildomain.Email{}).Where("id = ?", id).
		Update("last_processed_at", at).Error
}

func (r *emailRepository) MarkMuted(id string) error {
	return r.db.Model(&emaildomain.Email{}).Where("id = ?", id).
		Update("is_muted", true).Error
}
