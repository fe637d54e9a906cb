package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	accountusecase "github.com/devspinn/dtown-email/internal/account/usecase"
	emailrepo "github.com/devspinn/dtown-email/internal/email/repository"
	emailusecase "github.com/devspinn/dtown-email/internal/email/usecase"
	processordomain "github.com/devspinn/dtown-email/internal/processor/domain"
	processorrepo "github.com/devspinn/dtown-email/internal/processor/repository"
	processorusecase "github.com/devspinn/dtown-email/internal/processor/usecase"
	ruledomain "github.com/devspinn/dtown-email/internal/rule/domain"
	"github.com/devspinn/dtown-email/internal/rule/dto"
	"github.com/devspinn/dtown-email/internal/rule/repository"
	"github.com/devspinn/dtown-email/pkg/ai"
	"github.com/devspinn/dtown-email/pkg/config"

	"github.com/google/uuid"
)

// ruleUsecase implements RuleUsecase interface
type ruleUsecase struct {
	ruleRepo       repository.RuleRepository
	emailRepo      emailrepo.EmailRepository
	executionRepo  processorrepo.ExecutionRepository
	accountUsecase accountusecase.AccountUsecase
	emailUsecase   emailusecase.EmailUsecase
	processor      processorusecase.ProcessorUsecase
	classifier     ai.Classifier
	config         *config.Config
}

// NewRuleUsecase creates a new instance of ruleUsecase
func NewRuleUsecase(
	ruleRepo repository.RuleRepository,
	emailRepo emailrepo.EmailRepository,
	executionRepo processorrepo.ExecutionRepository,
	accountUc accountusecase.AccountUsecase,
	emailUc emailusecase.EmailUsecase,
	processor processorusecase.ProcessorUsecase,
	classifier ai.Classifier,
	cfg *config.Config,
) RuleUsecase {
	return &ruleUsecase{
		ruleRepo:       ruleRepo,
		emailRepo:      emailRepo,
		executionRepo:  executionRepo,
		accountUsecase: accountUc,
		emailUsecase:   emailUc,
		processor:      processor,
		classifier:     classifier,
		config:         cfg,
	}
}

func (u *ruleUsecase) CreateRule(ctx context.Context, userID string, req *dto.CreateRuleRequest) (*ruledomain.Rule, error) {
	actionType, err := ruledomain.ParseActionType(req.ActionType)
	if err != nil {
		return nil, err
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		if req.Description == "" {
			return nil, errors.New("either a description or a system prompt is required")
		}
		systemPrompt, err = u.classifier.CompilePrompt(ctx, req.Description)
		if err != nil {
			return nil, fmt.Errorf("unable to compile rule prompt: %v", err)
		}
	}

	rule := &ruledomain.Rule{
		ID:           uuid.New().String(),
		UserID:       userID,
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: systemPrompt,
		ActionType:   actionType,
		ActionValue:  req.ActionValue,
		IsActive:     true,
		Priority:     req.Priority,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := u.ruleRepo.Create(rule); err != nil {
		return nil, err
	}
	log.Printf("Created rule %s (%s) for user %s", rule.Name, rule.ID, userID)
	return rule, nil
}

func (u *ruleUsecase) ListRules(userID string) ([]*ruledomain.Rule, error) {
	return u.ruleRepo.ListByUser(userID)
}

func (u *ruleUsecase) GetRule(userID, ruleID string) (*ruledomain.Rule, error) {
	rule, err := u.ruleRepo.FindByID(ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil || rule.UserID != userID {
		return nil, errors.New("rule not found")
	}
	return rule, nil
}

func (u *ruleUsecase) UpdateRule(ctx context.Context, userID, ruleID string, req *dto.UpdateRuleRequest) (*ruledomain.Rule, error) {
	rule, err := u.GetRule(userID, ruleID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.ActionType != nil {
		actionType, err := ruledomain.ParseActionType(*req.ActionType)
		if err != nil {
			return nil, err
		}
		rule.ActionType = actionType
	}
	if req.ActionValue != nil {
		rule.ActionValue = *req.ActionValue
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.SystemPrompt != nil {
		rule.SystemPrompt = *req.SystemPrompt
		if req.Description != nil {
			rule.Description = *req.Description
		}
	} else if req.Description != nil && *req.Description != rule.Description {
		// New description without an explicit prompt: recompile
		rule.Description = *req.Description
		compiled, err := u.classifier.CompilePrompt(ctx, rule.Description)
		if err != nil {
			return nil, fmt.Errorf("unable to compile rule prompt: %v", err)
		}
		rule.SystemPrompt = compiled
	}
	rule.UpdatedAt = time.Now()

	if err := u.ruleRepo.Update(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (u *ruleUsecase) ToggleRule(userID, ruleID string) (*ruledomain.Rule, error) {
	rule, err := u.GetRule(userID, ruleID)
	if err != nil {
		return nil, err
	}
	rule.IsActive = !rule.IsActive
	rule.UpdatedAt = time.Now()
	if err := u.ruleRepo.Update(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (u *ruleUsecase) DeleteRule(userID, ruleID string) error {
	return u.ruleRepo.Delete(userID, ruleID)
}

func (u *ruleUsecase) CompilePrompt(ctx context.Context, description string) (string, error) {
	if description == "" {
		return "", errors.New("description is required")
	}
	return u.classifier.CompilePrompt(ctx, description)
}

func (u *ruleUsecase) TestRule(ctx context.Context, userID, ruleID string, limit int) (*TestResult, error) {
	rule, err := u.GetRule(userID, ruleID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = u.config.DefaultSyncSize
	}

	account, err := u.accountUsecase.ActiveAccount(userID)
	if err != nil {
		return nil, err
	}

	// Refresh the cache first so the dry run sees current mail
	if _, err := u.emailUsecase.SyncAccount(ctx, account, limit); err != nil {
		return nil, err
	}

	emails, err := u.emailRepo.ListRecent(account.ID, limit)
	if err != nil {
		return nil, err
	}

	result := &TestResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Tested:   len(emails),
		Outcomes: make([]TestOutcome, len(emails)),
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, u.config.ClassifyWorkers())

	for i, email := range emails {
		result.Outcomes[i] = TestOutcome{
			EmailID: email.ID,
			Subject: email.Subject,
			From:    email.From,
		}

		wg.Add(1)
		go func(i int, body string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			callCtx, cancel := context.WithTimeout(ctx, u.config.ClassifyTimeout)
			defer cancel()

			classification, err := u.classifier.Classify(callCtx, body, rule.SystemPrompt)
			if err != nil {
				result.Outcomes[i].Error = err.Error()
				return
			}
			result.Outcomes[i].Matched = classification.Matched
			result.Outcomes[i].Confidence = classification.Confidence
			result.Outcomes[i].Reasoning = classification.Reasoning
		}(i, email.ClassificationText())
	}
	wg.Wait()

	for i := range result.Outcomes {
		if result.Outcomes[i].Matched {
			result.Matched++
		}
	}
	return result, nil
}

func (u *ruleUsecase) ApplyToEmails(ctx context.Context, userID, ruleID string, emailIDs []string) (int, error) {
	rule, err := u.GetRule(userID, ruleID)
	if err != nil {
		return 0, err
	}

	account, err := u.accountUsecase.ActiveAccount(userID)
	if err != nil {
		return 0, err
	}
	creds := u.accountUsecase.CredentialsFor(account)

	applied := 0
	for _, emailID := range emailIDs {
		email, err := u.emailRepo.FindByID(emailID)
		if err != nil {
			return applied, err
		}
		if email == nil || email.EmailAccountID != account.ID {
			log.Printf("Skipping unknown email %s for manual rule application", emailID)
			continue
		}

		// Manual application bypasses classification, so the audit row has
		// no confidence
		execution := &processordomain.RuleExecution{
			EmailID: email.ID,
			RuleID:  rule.ID,
			Matched: true,
		}

		if err := u.processor.ExecuteAction(ctx, creds, email, rule); err != nil {
			log.Printf("Failed to apply rule %s to email %s: %v", rule.ID, email.ID, err)
			execution.ErrorMessage = fmt.Sprintf("action failed: %v", err)
		} else {
			execution.ActionTaken = string(rule.ActionType)
			applied++
		}

		if err := u.executionRepo.Create(execution); err != nil {
			log.Printf("Failed to record manual application of rule %s to email %s: %v", rule.ID, email.ID, err)
		}
	}

	return applied, nil
}
