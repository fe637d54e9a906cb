package repository

import (
	"time"

	processordomain "github.com/devspinn/dtown-email/internal/processor/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// executionRepository implements ExecutionRepository interface
type executionRepository struct {
	db *gorm.DB
}

// NewExecutionRepository creates a new instance of executionRepository
func NewExecutionRepository(db *gorm.DB) ExecutionRepository {
	return &executionRepository{
		db: db,
	}
}

func (r *executionRepository) Create(execution *processordomain.RuleExecution) error {
	execution.ID = uuid.New().String()
	if execution.ExecutedAt.IsZero() {
		execution.ExecutedAt = time.Now()
	}
	if execution.Confidence != nil {
		clamped := clamp(*execution.Confidence)
		execution.Confidence = &clamped
	}
	return r.db.Create(execution).Error
}

func (r *executionRepository) ListByUser(userID string, filter ExecutionFilter, limit, offset int) ([]*processordomain.ExecutionRecord, int64, error) {
	base := r.db.Table("rule_executions").
		Joins("JOIN emails ON emails.id = rule_executions.email_id").
		Joins("JOIN rules ON rules.id = rule_executions.rule_id").
		Where("rules.user_id = ?", userID)

	if filter.RuleID != "" {
		base = base.Where("rule_executions.rule_id = ?", filter.RuleID)
	}
	if filter.EmailID != "" {
		base = base.Where("rule_executions.email_id = ?", filter.EmailID)
	}
	if filter.Matched != nil {
		base = base.Where("rule_executions.matched = ?", *filter.Matched)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*processordomain.ExecutionRecord
	err := base.
		Select("rule_executions.*, emails.subject AS email_subject, emails.from_address AS email_from, rules.name AS rule_name").
		Order("rule_executions.executed_at DESC").
		Limit(limit).Offset(offset).
		Scan(&records).Error
	return records, total, err
}

func (r *executionRepository) ListByEmail(emailID string) ([]*processordomain.RuleExecution, error) {
	var executions []*processordomain.RuleExecution
	err := r.db.Where("email_id = ?", emailID).
		Order("executed_at ASC").
		Find(&executions).Error
	return executions, err
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
