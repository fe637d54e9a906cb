package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	accountusecase "github.com/devspinn/dtown-email/internal/account/usecase"
	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"
	emailrepo "github.com/devspinn/dtown-email/internal/email/repository"
	emailusecase "github.com/devspinn/dtown-email/internal/email/usecase"
	processordomain "github.com/devspinn/dtown-email/internal/processor/domain"
	"github.com/devspinn/dtown-email/internal/processor/repository"
	ruledomain "github.com/devspinn/dtown-email/internal/rule/domain"
	rulerepo "github.com/devspinn/dtown-email/internal/rule/repository"
	"github.com/devspinn/dtown-email/pkg/ai"
	"github.com/devspinn/dtown-email/pkg/config"
)

// processorUsecase implements ProcessorUsecase interface
type processorUsecase struct {
	emailRepo      emailrepo.EmailRepository
	ruleRepo       rulerepo.RuleRepository
	executionRepo  repository.ExecutionRepository
	accountUsecase accountusecase.AccountUsecase
	emailUsecase   emailusecase.EmailUsecase
	gateway        emaildomain.MailGateway
	classifier     ai.Classifier
	config         *config.Config
}

// NewProcessorUsecase creates a new instance of processorUsecase
func NewProcessorUsecase(
	emailRepo emailrepo.EmailRepository,
	ruleRepo rulerepo.RuleRepository,
	executionRepo repository.ExecutionRepository,
	accountUc accountusecase.AccountUsecase,
	emailUc emailusecase.EmailUsecase,
	gateway emaildomain.MailGateway,
	classifier ai.Classifier,
	cfg *config.Config,
) ProcessorUsecase {
	return &processorUsecase{
		emailRepo:      emailRepo,
		ruleRepo:       ruleRepo,
		executionRepo:  executionRepo,
		accountUsecase: accountUc,
		emailUsecase:   emailUc,
		gateway:        gateway,
		classifier:     classifier,
		config:         cfg,
	}
}

// classifyResult pairs a rule with its classification attempt
type classifyResult struct {
	rule           *ruledomain.Rule
	classification *ai.Classification
	err            error
}

func (u *processorUsecase) ProcessEmail(ctx context.Context, userID, emailID string) (*Outcome, error) {
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

	creds := u.accountUsecase.CredentialsFor(account)
	return u.processEmail(ctx, userID, creds, email)
}

func (u *processorUsecase) processEmail(ctx context.Context, userID string, creds emaildomain.Credentials, email *emaildomain.Email) (*Outcome, error) {
	outcome := &Outcome{EmailID: email.ID}

	// Muted threads short-circuit: the email is archived and mute-labeled
	// without a single classifier call.
	muted := email.IsMuted
	if !muted {
		threadMuted, err := u.emailRepo.ThreadMuted(email.EmailAccountID, email.ThreadID)
		if err != nil {
			return nil, err
		}
		muted = threadMuted
	}
	if muted {
		outcome.ThreadMuted = true
		if err := u.muteEmail(ctx, creds, email); err != nil {
			return nil, err
		}
		return outcome, u.markProcessed(ctx, creds, email)
	}

	rules, err := u.ruleRepo.ListActiveByUser(userID)
	if err != nil {
		return nil, err
	}

	// Empty rule set still consumes the email
	if len(rules) == 0 {
		return outcome, u.markProcessed(ctx, creds, email)
	}

	results := u.classifyAll(ctx, email, rules)

	if err := u.checkClassifierReachable(results); err != nil {
		return nil, err
	}

	// One audit row per attempted classification, error or not
	for i := range results {
		res := &results[i]
		execution := &processordomain.RuleExecution{
			EmailID: email.ID,
			RuleID:  res.rule.ID,
		}
		ro := RuleOutcome{RuleID: res.rule.ID, RuleName: res.rule.Name}

		if res.err != nil {
			execution.ErrorMessage = res.err.Error()
			ro.Error = res.err.Error()
		} else {
			confidence := res.classification.Confidence
			execution.Matched = res.classification.Matched
			execution.Confidence = &confidence
			execution.Reasoning = res.classification.Reasoning
			execution.LLMResponse = res.classification.Raw
			ro.Matched = res.classification.Matched
			ro.Confidence = &confidence
			ro.Reasoning = res.classification.Reasoning
		}

		// Actions run serially in priority order; results are already in
		// rule order. A failed action lands on the audit row, evaluation
		// continues.
		if res.err == nil && res.classification.Matched {
			if err := u.ExecuteAction(ctx, creds, email, res.rule); err != nil {
				log.Printf("Failed to execute action for rule %s on email %s: %v", res.rule.ID, email.ID, err)
				execution.ErrorMessage = fmt.Sprintf("action failed: %v", err)
				ro.Error = execution.ErrorMessage
			} else {
				execution.ActionTaken = string(res.rule.ActionType)
				ro.ActionTaken = string(res.rule.ActionType)
			}
		}

		if err := u.executionRepo.Create(execution); err != nil {
			log.Printf("Failed to record execution for rule %s on email %s: %v", res.rule.ID, email.ID, err)
		}
		outcome.Rules = append(outcome.Rules, ro)
	}

	return outcome, u.markProcessed(ctx, creds, email)
}

// classifyAll runs every rule's classifier call concurrently with a bounded
// semaphore. Results come back in rule order regardless of completion order.
func (u *processorUsecase) classifyAll(ctx context.Context, email *emaildomain.Email, rules []*ruledomain.Rule) []classifyResult {
	results := make([]classifyResult, len(rules))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, u.config.ClassifyWorkers())

	for i, rule := range rules {
		wg.Add(1)
		go func(i int, rule *ruledomain.Rule) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			callCtx, cancel := context.WithTimeout(ctx, u.config.ClassifyTimeout)
			defer cancel()

			classification, err := u.classifier.Classify(callCtx, email.ClassificationText(), rule.SystemPrompt)
			results[i] = classifyResult{rule: rule, classification: classification, err: err}
		}(i, rule)
	}
	wg.Wait()

	return results
}

// checkClassifierReachable distinguishes per-rule degradation from total
// classifier unreachability. Only the latter aborts the evaluation, so a
// transient outage never burns the processed marker. A malformed response
// on any rule means the classifier was reached, so the pass proceeds and
// the per-rule audit rows carry the failures.
func (u *processorUsecase) checkClassifierReachable(results []classifyResult) error {
	var connErr error
	for i := range results {
		if results[i].err == nil {
			return nil
		}
		if !ai.IsConnectionError(results[i].err) {
			return nil
		}
		if connErr == nil {
			connErr = results[i].err
		}
	}
	if connErr != nil {
		return fmt.Errorf("classifier unreachable: %v", connErr)
	}
	return nil
}

func (u *processorUsecase) ExecuteAction(ctx context.Context, creds emaildomain.Credentials, email *emaildomain.Email, rule *ruledomain.Rule) error {
	if err := u.gateway.AddLabel(ctx, creds, email.GmailMessageID, rule.ActionValue); err != nil {
		return fmt.Errorf("unable to add label %q: %v", rule.ActionValue, err)
	}

	switch rule.ActionType {
	case ruledomain.ActionLabel:
		// label only
	case ruledomain.ActionLabelAndArchive:
		if err := u.gateway.RemoveInboxMarker(ctx, creds, email.GmailMessageID); err != nil {
			return fmt.Errorf("unable to archive message: %v", err)
		}
	case ruledomain.ActionLabelAndMute:
		if err := u.gateway.MuteThread(ctx, creds, email.ThreadID); err != nil {
			return fmt.Errorf("unable to mute thread: %v", err)
		}
		if err := u.emailRepo.MarkMuted(email.ID); err != nil {
			return fmt.Errorf("unable to flag email as muted: %v", err)
		}
	default:
		return fmt.Errorf("unknown action type: %q", rule.ActionType)
	}
	return nil
}

// muteEmail applies the mute treatment to a message in an already muted
// thread: mute label plus archive, then the internal flag.
func (u *processorUsecase) muteEmail(ctx context.Context, creds emaildomain.Credentials, email *emaildomain.Email) error {
	if err := u.gateway.AddLabel(ctx, creds, email.GmailMessageID, u.config.MutedLabel); err != nil {
		return fmt.Errorf("unable to mute-label message: %v", err)
	}
	if err := u.gateway.RemoveInboxMarker(ctx, creds, email.GmailMessageID); err != nil {
		return fmt.Errorf("unable to archive muted message: %v", err)
	}
	if email.IsMuted {
		return nil
	}
	return u.emailRepo.MarkMuted(email.ID)
}

// markProcessed stamps the processed marker label at the provider and the
// processed timestamp in the cache. Both are idempotent.
func (u *processorUsecase) markProcessed(ctx context.Context, creds emaildomain.Credentials, email *emaildomain.Email) error {
	if err := u.gateway.AddLabel(ctx, creds, email.GmailMessageID, u.config.ProcessedLabel); err != nil {
		return fmt.Errorf("unable to apply processed label: %v", err)
	}
	now := time.Now()
	if err := u.emailRepo.MarkProcessed(email.ID, now); err != nil {
		return err
	}
	email.LastProcessedAt = &now
	return nil
}

func (u *processorUsecase) ProcessInbox(ctx context.Context, userID string, maxMessages int) (*BatchOutcome, error) {
	account, err := u.accountUsecase.ActiveAccount(userID)
	if err != nil {
		return nil, err
	}

	syncResult, err := u.emailUsecase.SyncAccount(ctx, account, maxMessages)
	if err != nil {
		return nil, err
	}

	emails, err := u.emailRepo.ListUnprocessed(account.ID, 0)
	if err != nil {
		return nil, err
	}

	batch := &BatchOutcome{Synced: syncResult.NewEmails}
	if len(emails) == 0 {
		return batch, nil
	}

	creds := u.accountUsecase.CredentialsFor(account)

	// Threads run in parallel; messages within a thread stay sequential and
	// oldest-first so mute propagation sees the thread head before replies.
	threads := make(map[string][]*emaildomain.Email)
	var order []string
	for _, email := range emails {
		if _, ok := threads[email.ThreadID]; !ok {
			order = append(order, email.ThreadID)
		}
		threads[email.ThreadID] = append(threads[email.ThreadID], email)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, u.config.ClassifyWorkers())

	for _, threadID := range order {
		wg.Add(1)
		go func(emails []*emaildomain.Email) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			for _, email := range emails {
				outcome, err := u.processEmail(ctx, userID, creds, email)
				mu.Lock()
				if err != nil {
					log.Printf("Failed to process email %s: %v", email.ID, err)
					batch.Failed++
				} else {
					batch.Processed++
					for _, ro := range outcome.Rules {
						if ro.Matched {
							batch.Matched++
							break
						}
					}
				}
				mu.Unlock()
			}
		}(threads[threadID])
	}
	wg.Wait()

	log.Printf("Inbox pass for user %s: %d processed, %d matched, %d failed",
		userID, batch.Processed, batch.Matched, batch.Failed)
	return batch, nil
}

func (u *processorUsecase) ListExecutions(userID string, filter repository.ExecutionFilter, limit, offset int) ([]*processordomain.ExecutionRecord, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	return u.executionRepo.ListByUser(userID, filter, limit, offset)
}
