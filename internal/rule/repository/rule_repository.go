package repository

import (
	"errors"
	"time"

	ruledomain "github.com/devspinn/dtown-email/internal/rule/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ruleRepository implements RuleRepository interface
type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new instance of ruleRepository
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{
		db: db,
	}
}

func (r *ruleRepository) Create(rule *ruledomain.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.ID = uuid.New().String()
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()
	return r.db.Create(rule).Error
}

func (r *ruleRepository) FindByID(id string) (*ruledomain.Rule, error) {
	var rule ruledomain.Rule
	err := r.db.Where("id = ?", id).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepository) ListByUser(userID string) ([]*ruledomain.Rule, error) {
	var rules []*ruledomain.Rule
	err := r.db.Where("user_id = ?", userID).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) ListActiveByUser(userID string) ([]*ruledomain.Rule, error) {
	var rules []*ruledomain.Rule
	err := r.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) Update(rule *ruledomain.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.UpdatedAt = time.Now()
	return r.db.Save(rule).Error
}

func (r *ruleRepository) Delete(userID, id string) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&ruledomain.Rule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("rule not found")
	}
	return nil
}
