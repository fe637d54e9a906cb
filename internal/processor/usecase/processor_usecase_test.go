package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	accountdomain "github.com/devspinn/dtown-email/internal/account/domain"
	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"
	emailusecase "github.com/devspinn/dtown-email/internal/email/usecase"
	processordomain "github.com/devspinn/dtown-email/internal/processor/domain"
	"github.com/devspinn/dtown-email/internal/processor/repository"
	ruledomain "github.com/devspinn/dtown-email/internal/rule/domain"
	"github.com/devspinn/dtown-email/pkg/ai"
	"github.com/devspinn/dtown-email/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserID    = "user-1"
	testAccountID = "account-1"
)

// fakeEmailRepo is an in-memory EmailRepository
type fakeEmailRepo struct {
	mu     sync.Mutex
	emails map[string]*emaildomain.Email
}

func newFakeEmailRepo(emails ...*emaildomain.Email) *fakeEmailRepo {
	r := &fakeEmailRepo{emails: make(map[string]*emaildomain.Email)}
	for _, e := range emails {
		r.emails[e.ID] = e
	}
	return r
}

func (r *fakeEmailRepo) Upsert(accountID string, message *emaildomain.Message) (bool, *emaildomain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.emails {
		if e.GmailMessageID == message.ID {
			e.Snippet = message.Snippet
			e.BodyText = message.BodyText
			e.LabelIDs = emaildomain.StringArray(message.LabelIDs)
			return false, e, nil
		}
	}
	email := &emaildomain.Email{
		ID:             uuid.New().String(),
		GmailMessageID: message.ID,
		EmailAccountID: accountID,
		ThreadID:       message.ThreadID,
		From:           message.From,
		Subject:        message.Subject,
		Snippet:        message.Snippet,
		BodyText:       message.BodyText,
		ReceivedAt:     message.ReceivedAt,
	}
	r.emails[email.ID] = email
	return true, email, nil
}

func (r *fakeEmailRepo) FindByID(id string) (*emaildomain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emails[id], nil
}

func (r *fakeEmailRepo) FindByMessageID(gmailMessageID string) (*emaildomain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.emails {
		if e.GmailMessageID == gmailMessageID {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeEmailRepo) ListByAccount(accountID string, limit, offset int) ([]*emaildomain.Email, int64, error) {
	emails, err := r.ListRecent(accountID, limit)
	return emails, int64(len(emails)), err
}

func (r *fakeEmailRepo) ListRecent(accountID string, limit int) ([]*emaildomain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*emaildomain.Email
	for _, e := range r.emails {
		if e.EmailAccountID == accountID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeEmailRepo) ListUnprocessed(accountID string, limit int) ([]*emaildomain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*emaildomain.Email
	for _, e := range r.emails {
		if e.EmailAccountID == accountID && e.LastProcessedAt == nil {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeEmailRepo) OldestInThread(accountID, threadID string) (*emaildomain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *emaildomain.Email
	for _, e := range r.emails {
		if e.EmailAccountID == accountID && e.ThreadID == threadID {
			if oldest == nil || e.ReceivedAt.Before(oldest.ReceivedAt) {
				oldest = e
			}
		}
	}
	return oldest, nil
}

func (r *fakeEmailRepo) ThreadMuted(accountID, threadID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.emails {
		if e.EmailAccountID == accountID && e.ThreadID == threadID && e.IsMuted {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeEmailRepo) MarkProcessed(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.emails[id]; ok {
		e.LastProcessedAt = &at
	}
	return nil
}

func (r *fakeEmailRepo) MarkMuted(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.emails[id]; ok {
		e.IsMuted = true
	}
	return nil
}

// fakeRuleRepo serves a fixed rule list
type fakeRuleRepo struct {
	rules []*ruledomain.Rule
}

func (r *fakeRuleRepo) Create(rule *ruledomain.Rule) error { return nil }
func (r *fakeRuleRepo) Update(rule *ruledomain.Rule) error { return nil }
func (r *fakeRuleRepo) Delete(userID, id string) error     { return nil }

func (r *fakeRuleRepo) FindByID(id string) (*ruledomain.Rule, error) {
	for _, rule := range r.rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return nil, nil
}

func (r *fakeRuleRepo) ListByUser(userID string) ([]*ruledomain.Rule, error) {
	return r.rules, nil
}

func (r *fakeRuleRepo) ListActiveByUser(userID string) ([]*ruledomain.Rule, error) {
	var active []*ruledomain.Rule
	for _, rule := range r.rules {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	return active, nil
}

// fakeExecutionRepo records audit rows in memory
type fakeExecutionRepo struct {
	mu         sync.Mutex
	executions []*processordomain.RuleExecution
}

func (r *fakeExecutionRepo) Create(execution *processordomain.RuleExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	execution.ID = uuid.New().String()
	if execution.ExecutedAt.IsZero() {
		execution.ExecutedAt = time.Now()
	}
	r.executions = append(r.executions, execution)
	return nil
}

func (r *fakeExecutionRepo) ListByUser(userID string, filter repository.ExecutionFilter, limit, offset int) ([]*processordomain.ExecutionRecord, int64, error) {
	return nil, 0, nil
}

func (r *fakeExecutionRepo) ListByEmail(emailID string) ([]*processordomain.RuleExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []*processordomain.RuleExecution
	for _, e := range r.executions {
		if e.EmailID == emailID {
			rows = append(rows, e)
		}
	}
	return rows, nil
}

// fakeAccountUsecase serves one fixed active account
type fakeAccountUsecase struct {
	account *accountdomain.EmailAccount
}

func newFakeAccountUsecase() *fakeAccountUsecase {
	return &fakeAccountUsecase{account: &accountdomain.EmailAccount{
		ID:       testAccountID,
		UserID:   testUserID,
		Email:    "user@example.com",
		Provider: accountdomain.ProviderGmail,
		IsActive: true,
	}}
}

func (f *fakeAccountUsecase) GoogleAuthURL(state string) string { return "" }
func (f *fakeAccountUsecase) ConnectGoogle(ctx context.Context, userID, code string) (*accountdomain.EmailAccount, error) {
	return nil, nil
}
func (f *fakeAccountUsecase) ConnectIMAP(ctx context.Context, userID, email, host, username, password string) (*accountdomain.EmailAccount, error) {
	return nil, nil
}
func (f *fakeAccountUsecase) ListAccounts(userID string) ([]*accountdomain.EmailAccount, error) {
	return []*accountdomain.EmailAccount{f.account}, nil
}
func (f *fakeAccountUsecase) ActiveAccount(userID string) (*accountdomain.EmailAccount, error) {
	if f.account == nil {
		return nil, errors.New("no email account connected")
	}
	return f.account, nil
}
func (f *fakeAccountUsecase) Disconnect(userID, accountID string) error { return nil }
func (f *fakeAccountUsecase) CredentialsFor(account *accountdomain.EmailAccount) emaildomain.Credentials {
	return emaildomain.Credentials{AccountID: account.ID}
}
func (f *fakeAccountUsecase) Watch(ctx context.Context, userID, accountID string) error {
	return nil
}
func (f *fakeAccountUsecase) StopWatch(ctx context.Context, userID, accountID string) error {
	return nil
}

// gatewayCall records one provider mutation
type gatewayCall struct {
	op     string // addLabel, removeInbox, muteThread
	target string // message or thread id
	label  string
}

// fakeGateway records mutations instead of calling Gmail
type fakeGateway struct {
	mu       sync.Mutex
	calls    []gatewayCall
	labelErr error
}

func (g *fakeGateway) record(op, target, label string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gatewayCall{op: op, target: target, label: label})
}

func (g *fakeGateway) callsFor(op string) []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []gatewayCall
	for _, c := range g.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (g *fakeGateway) FetchRecent(ctx context.Context, creds emaildomain.Credentials, limit int) ([]*emaildomain.Message, error) {
	return nil, nil
}
func (g *fakeGateway) GetMessage(ctx context.Context, creds emaildomain.Credentials, messageID string) (*emaildomain.Message, error) {
	return nil, nil
}
func (g *fakeGateway) AddLabel(ctx context.Context, creds emaildomain.Credentials, messageID, labelName string) error {
	if g.labelErr != nil && labelName != "prcsd-dtown" {
		return g.labelErr
	}
	g.record("addLabel", messageID, labelName)
	return nil
}
func (g *fakeGateway) RemoveInboxMarker(ctx context.Context, creds emaildomain.Credentials, messageID string) error {
	g.record("removeInbox", messageID, "")
	return nil
}
func (g *fakeGateway) MuteThread(ctx context.Context, creds emaildomain.Credentials, threadID string) error {
	g.record("muteThread", threadID, "")
	return nil
}
func (g *fakeGateway) DeleteMessage(ctx context.Context, creds emaildomain.Credentials, messageID string) error {
	return nil
}
func (g *fakeGateway) GetOrCreateLabel(ctx context.Context, creds emaildomain.Credentials, name string) (string, error) {
	return "Label_1", nil
}

// fakeClassifier returns per-prompt canned verdicts and counts calls
type fakeClassifier struct {
	mu       sync.Mutex
	verdicts map[string]*ai.Classification // keyed by system prompt
	errs     map[string]error
	calls    int
}

func (c *fakeClassifier) Classify(ctx context.Context, emailBody, systemPrompt string) (*ai.Classification, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if err, ok := c.errs[systemPrompt]; ok {
		return nil, err
	}
	if v, ok := c.verdicts[systemPrompt]; ok {
		return v, nil
	}
	return &ai.Classification{Matched: false, Confidence: 0}, nil
}

func (c *fakeClassifier) CompilePrompt(ctx context.Context, description string) (string, error) {
	return "compiled: " + description, nil
}

// fakeSyncUsecase is a canned-result EmailUsecase for ProcessInbox tests
type fakeSyncUsecase struct {
	result emailusecase.SyncResult
}

func (f *fakeSyncUsecase) SyncEmails(ctx context.Context, userID string, maxMessages int) (*emailusecase.SyncResult, error) {
	result := f.result
	return &result, nil
}
func (f *fakeSyncUsecase) SyncAccount(ctx context.Context, account *accountdomain.EmailAccount, maxMessages int) (*emailusecase.SyncResult, error) {
	result := f.result
	return &result, nil
}
func (f *fakeSyncUsecase) ListEmails(userID string, limit, offset int) ([]*emaildomain.Email, int64, error) {
	return nil, 0, nil
}
func (f *fakeSyncUsecase) GetEmail(userID, emailID string) (*emaildomain.Email, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ProcessedLabel:   "prcsd-dtown",
		MutedLabel:       "muted-dtown",
		ClassifyTimeout:  5 * time.Second,
		ClassifyParallel: 5,
		DefaultSyncSize:  50,
	}
}

func testEmail(id, threadID string) *emaildomain.Email {
	return &emaildomain.Email{
		ID:             id,
		GmailMessageID: "msg-" + id,
		EmailAccountID: testAccountID,
		ThreadID:       threadID,
		From:           "sender@example.com",
		Subject:        "Quick question about your stack",
		BodyText:       "We sell monitoring tools, do you have 15 minutes this week?",
		ReceivedAt:     time.Now(),
	}
}

func newTestProcessor(emailRepo *fakeEmailRepo, ruleRepo *fakeRuleRepo, execRepo *fakeExecutionRepo, gateway *fakeGateway, classifier *fakeClassifier) ProcessorUsecase {
	return NewProcessorUsecase(emailRepo, ruleRepo, execRepo, newFakeAccountUsecase(), &fakeSyncUsecase{}, gateway, classifier, testConfig())
}

func TestProcessEmailMatchedRuleArchives(t *testing.T) {
	email := testEmail("e1", "t1")
	emailRepo := newFakeEmailRepo(email)
	rule := &ruledomain.Rule{
		ID: "r1", UserID: testUserID, Name: "Cold Sales",
		SystemPrompt: "cold-sales-prompt", ActionType: ruledomain.ActionLabelAndArchive,
		ActionValue: "cold-sales", IsActive: true,
	}
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{rule}}
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{}
	classifier := &fakeClassifier{verdicts: map[string]*ai.Classification{
		"cold-sales-prompt": {Matched: true, Confidence: 92, Reasoning: "unsolicited product pitch"},
	}}

	proc := newTestProcessor(emailRepo, ruleRepo, execRepo, gateway, classifier)
	outcome, err := proc.ProcessEmail(context.Background(), testUserID, "e1")
	require.NoError(t, err)

	require.Len(t, outcome.Rules, 1)
	assert.True(t, outcome.Rules[0].Matched)
	require.NotNil(t, outcome.Rules[0].Confidence)
	assert.Equal(t, 92, *outcome.Rules[0].Confidence)
	assert.Equal(t, "LABEL_AND_ARCHIVE", outcome.Rules[0].ActionTaken)

	// One rule label, one processed label, one archive
	labels := gateway.callsFor("addLabel")
	require.Len(t, labels, 2)
	assert.Equal(t, "cold-sales", labels[0].label)
	assert.Equal(t, "prcsd-dtown", labels[1].label)
	assert.Len(t, gateway.callsFor("removeInbox"), 1)
	assert.Empty(t, gateway.callsFor("muteThread"))

	// Audit row persisted with the verdict
	rows, err := execRepo.ListByEmail("e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Matched)
	require.NotNil(t, rows[0].Confidence)
	assert.Equal(t, 92, *rows[0].Confidence)
	assert.Equal(t, "LABEL_AND_ARCHIVE", rows[0].ActionTaken)

	// Processed marker recorded locally
	assert.NotNil(t, email.LastProcessedAt)
}

func TestProcessEmailUnmatchedStillAudited(t *testing.T) {
	email := testEmail("e1", "t1")
	emailRepo := newFakeEmailRepo(email)
	rule := &ruledomain.Rule{
		ID: "r1", UserID: testUserID, Name: "Newsletters",
		SystemPrompt: "newsletter-prompt", ActionType: ruledomain.ActionLabel,
		ActionValue: "newsletters", IsActive: true,
	}
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{rule}}
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{}
	classifier := &fakeClassifier{verdicts: map[string]*ai.Classification{
		"newsletter-prompt": {Matched: false, Confidence: 15, Reasoning: "personal email"},
	}}

	proc := newTestProcessor(emailRepo, ruleRepo, execRepo, gateway, classifier)
	outcome, err := proc.ProcessEmail(context.Background(), testUserID, "e1")
	require.NoError(t, err)

	require.Len(t, outcome.Rules, 1)
	assert.False(t, outcome.Rules[0].Matched)
	assert.Empty(t, outcome.Rules[0].ActionTaken)

	rows, err := execRepo.ListByEmail("e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Matched)

	// Only the processed marker touched the provider
	labels := gateway.callsFor("addLabel")
	require.Len(t, labels, 1)
	assert.Equal(t, "prcsd-dtown", labels[0].label)
}

func TestProcessEmailEmptyRuleSetStillMarksProcessed(t *testing.T) {
	email := testEmail("e1", "t1")
	emailRepo := newFakeEmailRepo(email)
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{}
	classifier := &fakeClassifier{}

	proc := newTestProcessor(emailRepo, &fakeRuleRepo{}, execRepo, gateway, classifier)
	outcome, err := proc.ProcessEmail(context.Background(), testUserID, "e1")
	require.NoError(t, err)

	assert.Empty(t, outcome.Rules)
	assert.Equal(t, 0, classifier.calls)
	assert.Empty(t, execRepo.executions)
	assert.NotNil(t, email.LastProcessedAt)

	labels := gateway.callsFor("addLabel")
	require.Len(t, labels, 1)
	assert.Equal(t, "prcsd-dtown", labels[0].label)
}

func TestProcessEmailInactiveRulesSkipped(t *testing.T) {
	email := testEmail("e1", "t1")
	emailRepo := newFakeEmailRepo(email)
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{
		{ID: "r1", Name: "Disabled", SystemPrompt: "p1", ActionType: ruledomain.ActionLabel, ActionValue: "x", IsActive: false},
	}}
	execRepo := &fakeExecutionRepo{}
	classifier := &fakeClassifier{}

	proc := newTestProcessor(emailRepo, ruleRepo, execRepo, &fakeGateway{}, classifier)
	outcome, err := proc.ProcessEmail(context.Background(), testUserID, "e1")
	require.NoError(t, err)

	assert.Empty(t, outcome.Rules)
	assert.Equal(t, 0, classifier.calls)
}

func TestProcessEmailMutedThreadSkipsClassification(t *testing.T) {
	head := testEmail("e1", "t1")
	head.IsMuted = true
	second := testEmail("e2", "t1")
	third := testEmail("e3", "t1")
	emailRepo := newFakeEmailRepo(head, second, third)
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{
		{ID: "r1", Name: "Cold Sales", SystemPrompt: "p", ActionType: ruledomain.ActionLabel, ActionValue: "x", IsActive: true},
	}}
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{}
	classifier := &fakeClassifier{}

	proc := newTestProcessor(emailRepo, ruleRepo, execRepo, gateway, classifier)

	for _, id := range []string{"e2", "e3"} {
		outcome, err := proc.ProcessEmail(context.Background(), testUserID, id)
		require.NoError(t, err)
		assert.True(t, outcome.ThreadMuted)
		assert.Empty(t, outcome.Rules)
	}

	// Zero classifier calls, both messages archived and mute-labeled
	assert.Equal(t, 0, classifier.calls)
	assert.Len(t, gateway.callsFor("removeInbox"), 2)

	muteLabels := 0
	for _, c := range gateway.callsFor("addLabel") {
		if c.label == "muted-dtown" {
			muteLabels++
		}
	}
	assert.Equal(t, 2, muteLabels)

	assert.True(t, second.IsMuted)
	assert.True(t, third.IsMuted)
	assert.NotNil(t, second.LastProcessedAt)
	assert.NotNil(t, third.LastProcessedAt)
}

func TestProcessEmailMultipleMatchesActInPriorityOrder(t *testing.T) {
	email := testEmail("e1", "t1")
	emailRepo := newFakeEmailRepo(email)
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{
		{ID: "r1", Name: "First", SystemPrompt: "p1", ActionType: ruledomain.ActionLabel, ActionValue: "first", IsActive: true, Priority: 1},
		{ID: "r2", Name: "Second", SystemPrompt: "p2", ActionType: ruledomain.ActionLabel, ActionValue: "second", IsActive: true, Priority: 2},
	}}
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{}
	classifier := &fakeClassifier{verdicts: map[string]*ai.Classification{
		"p1": {Matched: true, Confidence: 80},
		"p2": {Matched: true, Confidence: 70},
	}}

	proc := newTestProcessor(emailRepo, ruleRepo, execRepo, gateway, classifier)
	outcome, err := proc.ProcessEmail(context.Background(), testUserID, "e1")
	require.NoError(t, err)

	require.Len(t, outcome.Rules, 2)
	assert.Equal(t, "r1", outcome.Rules[0].RuleID)
	assert.Equal(t, "r2", outcome.Rules[1].RuleID)

	// Both audit rows exist and actions ran in rule order
	rows, err := execRepo.ListByEmail("e1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	labels := gateway.callsFor("addLabel")
	require.Len(t, labels, 3)
	assert.Equal(t, "first", labels[0].label)
	assert.Equal(t, "second", labels[1].label)
	assert.Equal(t, "prcsd-dtown", labels[2].label)
}

func TestProcessEmailClassificationErrorIsolated(t *testing.T) {
	email := testEmail("e1", "t1")
	emailRepo := newFakeEmailRepo(email)
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{
		{ID: "r1", Name: "Broken", SystemPrompt: "p1", ActionType: ruledomain.ActionLabel, ActionValue: "x", IsActive: true, Priority: 1},
		{ID: "r2", Name: "Working", SystemPrompt: "p2", ActionType: ruledomain.ActionLabel, ActionValue: "working", IsActive: true, Priority: 2},
	}}
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{}
	classifier := &fakeClassifier{
		errs:     map[string]error{"p1": errors.New("no JSON object in classifier response")},
		verdicts: map[string]*ai.Classification{"p2": {Matched: true, Confidence: 85}},
	}

	proc := newTestProcessor(emailRepo, ruleRepo, execRepo, gateway, classifier)
	outcome, err := proc.ProcessEmail(context.Background(), testUserID, "e1")
	require.NoError(t, err)

	require.Len(t, outcome.Rules, 2)
	assert.NotEmpty(t, outcome.Rules[0].Error)
	assert.True(t, outcome.Rules[1].Matched)

	// Errored classification still gets an audit row
	rows, err := execRepo.ListByEmail("e1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotEmpty(t, rows[0].ErrorMessage)
	assert.Nil(t, rows[0].Confidence)
	assert.Equal(t, "LABEL", rows[1].ActionTaken)

	assert.NotNil(t, email.LastProcessedAt)
}

func TestProcessEmailClassifierUnreachableAborts(t *testing.T) {
	email := testEmail("e1", "t1")
	emailRepo := newFakeEmailRepo(email)
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{
		{ID: "r1", Name: "A", SystemPrompt: "p1", ActionType: ruledomain.ActionLabel, ActionValue: "x", IsActive: true},
		{ID: "r2", Name: "B", SystemPrompt: "p2", ActionType: ruledomain.ActionLabel, ActionValue: "y", IsActive: true},
	}}
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{}
	classifier := &fakeClassifier{errs: map[string]error{
		"p1": errors.New("dial tcp: connection refused"),
		"p2": errors.New("dial tcp: connection refused"),
	}}

	proc := newTestProcessor(emailRepo, ruleRepo, execRepo, gateway, classifier)
	_, err := proc.ProcessEmail(context.Background(), testUserID, "e1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier unreachable")
	assert.Contains(t, err.Error(), "connection refused")

	// Nothing recorded, nothing touched, email stays unprocessed for retry
	assert.Empty(t, execRepo.executions)
	assert.Empty(t, gateway.calls)
	assert.Nil(t, email.LastProcessedAt)
}

func TestProcessEmailMixedFailureModesDoNotAbort(t *testing.T) {
	email := testEmail("e1", "t1")
	emailRepo := newFakeEmailRepo(email)
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{
		{ID: "r1", Name: "A", SystemPrompt: "p1", ActionType: ruledomain.ActionLabel, ActionValue: "x", IsActive: true, Priority: 1},
		{ID: "r2", Name: "B", SystemPrompt: "p2", ActionType: ruledomain.ActionLabel, ActionValue: "y", IsActive: true, Priority: 2},
	}}
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{}
	// A malformed response means the classifier answered, so one rule timing
	// out does not amount to a total outage.
	classifier := &fakeClassifier{errs: map[string]error{
		"p1": errors.New("dial tcp: connection refused"),
		"p2": errors.New("no JSON object in classifier response"),
	}}

	proc := newTestProcessor(emailRepo, ruleRepo, execRepo, gateway, classifier)
	outcome, err := proc.ProcessEmail(context.Background(), testUserID, "e1")
	require.NoError(t, err)

	require.Len(t, outcome.Rules, 2)
	assert.Contains(t, outcome.Rules[0].Error, "connection refused")
	assert.Contains(t, outcome.Rules[1].Error, "no JSON object")

	rows, err := execRepo.ListByEmail("e1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotEmpty(t, rows[0].ErrorMessage)
	assert.NotEmpty(t, rows[1].ErrorMessage)

	assert.NotNil(t, email.LastProcessedAt)
}

func TestProcessEmailActionFailureRecordedOnAuditRow(t *testing.T) {
	email := testEmail("e1", "t1")
	emailRepo := newFakeEmailRepo(email)
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{
		{ID: "r1", Name: "Cold Sales", SystemPrompt: "p1", ActionType: ruledomain.ActionLabel, ActionValue: "cold-sales", IsActive: true},
	}}
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{labelErr: fmt.Errorf("googleapi: Error 403: insufficient permissions")}
	classifier := &fakeClassifier{verdicts: map[string]*ai.Classification{
		"p1": {Matched: true, Confidence: 90},
	}}

	proc := newTestProcessor(emailRepo, ruleRepo, execRepo, gateway, classifier)
	outcome, err := proc.ProcessEmail(context.Background(), testUserID, "e1")
	require.NoError(t, err)

	require.Len(t, outcome.Rules, 1)
	assert.NotEmpty(t, outcome.Rules[0].Error)
	assert.Empty(t, outcome.Rules[0].ActionTaken)

	rows, err := execRepo.ListByEmail("e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Matched)
	assert.Contains(t, rows[0].ErrorMessage, "action failed")

	// Evaluation continued to the processed marker
	assert.NotNil(t, email.LastProcessedAt)
}

func TestProcessEmailMuteActionFlagsThread(t *testing.T) {
	email := testEmail("e1", "t1")
	emailRepo := newFakeEmailRepo(email)
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{
		{ID: "r1", Name: "Noisy Thread", SystemPrompt: "p1", ActionType: ruledomain.ActionLabelAndMute, ActionValue: "noisy", IsActive: true},
	}}
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{}
	classifier := &fakeClassifier{verdicts: map[string]*ai.Classification{
		"p1": {Matched: true, Confidence: 75},
	}}

	proc := newTestProcessor(emailRepo, ruleRepo, execRepo, gateway, classifier)
	_, err := proc.ProcessEmail(context.Background(), testUserID, "e1")
	require.NoError(t, err)

	mutes := gateway.callsFor("muteThread")
	require.Len(t, mutes, 1)
	assert.Equal(t, "t1", mutes[0].target)
	assert.True(t, email.IsMuted)
}

func TestProcessInbox(t *testing.T) {
	e1 := testEmail("e1", "t1")
	e2 := testEmail("e2", "t2")
	processed := testEmail("e3", "t3")
	now := time.Now()
	processed.LastProcessedAt = &now

	emailRepo := newFakeEmailRepo(e1, e2, processed)
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{
		{ID: "r1", Name: "Cold Sales", SystemPrompt: "p1", ActionType: ruledomain.ActionLabel, ActionValue: "cold-sales", IsActive: true},
	}}
	execRepo := &fakeExecutionRepo{}
	gateway := &fakeGateway{}
	classifier := &fakeClassifier{verdicts: map[string]*ai.Classification{
		"p1": {Matched: true, Confidence: 90},
	}}

	// The sync pre-pass re-fetched five messages but only cached two new ones
	syncUc := &fakeSyncUsecase{result: emailusecase.SyncResult{Fetched: 5, NewEmails: 2, Updated: 3}}
	proc := NewProcessorUsecase(emailRepo, ruleRepo, execRepo, newFakeAccountUsecase(), syncUc, gateway, classifier, testConfig())
	batch, err := proc.ProcessInbox(context.Background(), testUserID, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Synced)
	assert.Equal(t, 2, batch.Processed)
	assert.Equal(t, 2, batch.Matched)
	assert.Equal(t, 0, batch.Failed)

	// Already processed email untouched
	assert.Equal(t, 2, classifier.calls)
	assert.NotNil(t, e1.LastProcessedAt)
	assert.NotNil(t, e2.LastProcessedAt)
}

func TestProcessInboxZeroFanOutStillCompletes(t *testing.T) {
	e1 := testEmail("e1", "t1")
	e2 := testEmail("e2", "t2")
	emailRepo := newFakeEmailRepo(e1, e2)
	ruleRepo := &fakeRuleRepo{rules: []*ruledomain.Rule{
		{ID: "r1", Name: "Cold Sales", SystemPrompt: "p1", ActionType: ruledomain.ActionLabel, ActionValue: "cold-sales", IsActive: true},
	}}
	classifier := &fakeClassifier{verdicts: map[string]*ai.Classification{
		"p1": {Matched: true, Confidence: 90},
	}}

	// A misconfigured fan-out of zero must floor to one worker instead of
	// deadlocking on an unbuffered semaphore.
	cfg := testConfig()
	cfg.ClassifyParallel = 0
	proc := NewProcessorUsecase(emailRepo, ruleRepo, &fakeExecutionRepo{}, newFakeAccountUsecase(), &fakeSyncUsecase{}, &fakeGateway{}, classifier, cfg)

	done := make(chan struct{})
	var batch *BatchOutcome
	var err error
	go func() {
		batch, err = proc.ProcessInbox(context.Background(), testUserID, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("inbox pass did not complete")
	}

	require.NoError(t, err)
	assert.Equal(t, 2, batch.Processed)
	assert.Equal(t, 0, batch.Failed)
}
