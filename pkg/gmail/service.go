package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"

	"github.com/k3a/html2text"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Service is a long-lived Gmail gateway. One instance per process; per-user
// OAuth state is passed in with every call.
type Service struct {
	clientID     string
	clientSecret string
	mutedLabel   string

	// label name -> label id, per account email. Guarded by labelMu so two
	// actions racing to create the same label resolve to one provider call.
	labelCache map[string]string
	labelMu    sync.Mutex
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback emaildomain.TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			fmt.Printf("Failed to update token: %v\n", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret, mutedLabel string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		mutedLabel:   mutedLabel,
		labelCache:   make(map[string]string),
	}
}

// getGmailService creates a Gmail API client with the account's tokens
func (s *Service) getGmailService(ctx context.Context, creds emaildomain.Credentials) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.TokenExpiry,
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	// Wrap the token source so refreshed tokens get persisted
	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: creds.OnTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

// FetchRecent retrieves up to limit most-recent inbox messages with full details
func (s *Service) FetchRecent(ctx context.Context, creds emaildomain.Credentials, limit int) ([]*emaildomain.Message, error) {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	user := "me"
	maxResults := int64(limit)
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 500 {
		maxResults = 500 // Gmail API maximum
	}

	listResp, err := srv.Users.Messages.List(user).Q("in:inbox").MaxResults(maxResults).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve messages: %v", err)
	}

	type fetchResult struct {
		index   int
		message *emaildomain.Message
		err     error
	}

	resultChan := make(chan fetchResult, len(listResp.Messages))
	semaphore := make(chan struct{}, 10) // Max 10 concurrent requests

	for i, msg := range listResp.Messages {
		go func(index int, msgID string) {
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			fullMsg, err := srv.Users.Messages.Get(user, msgID).Format("full").Do()
			if err != nil {
				resultChan <- fetchResult{index, nil, err}
				return
			}
			resultChan <- fetchResult{index, convertMessage(fullMsg), nil}
		}(i, msg.Id)
	}

	// Collect results preserving the list order (newest first)
	ordered := make([]*emaildomain.Message, len(listResp.Messages))
	for range listResp.Messages {
		result := <-resultChan
		if result.err != nil {
			// Skip messages we can't fetch; sync isolates per-message failures
			continue
		}
		ordered[result.index] = result.message
	}

	messages := make([]*emaildomain.Message, 0, len(ordered))
	for _, m := range ordered {
		if m != nil {
			messages = append(messages, m)
		}
	}

	return messages, nil
}

// GetMessage retrieves a single message with full details
func (s *Service) GetMessage(ctx context.Context, creds emaildomain.Credentials, messageID string) (*emaildomain.Message, error) {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", messageID).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message: %v", err)
	}

	return convertMessage(msg), nil
}

// AddLabel applies the named label to a message, creating the label first if
// it does not exist. Re-adding an existing label is a no-op at the provider.
func (s *Service) AddLabel(ctx context.Context, creds emaildomain.Credentials, messageID, labelName string) error {
	labelID, err := s.GetOrCreateLabel(ctx, creds, labelName)
	if err != nil {
		return err
	}

	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return err
	}

	modifyReq := &gmail.ModifyMessageRequest{
		AddLabelIds: []string{labelID},
	}
	if _, err := srv.Users.Messages.Modify("me", messageID, modifyReq).Do(); err != nil {
		return fmt.Errorf("unable to add label %q: %v", labelName, err)
	}

	return nil
}

// RemoveInboxMarker archives a message by removing its INBOX label
func (s *Service) RemoveInboxMarker(ctx context.Context, creds emaildomain.Credentials, messageID string) error {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return err
	}

	modifyReq := &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"INBOX"},
	}
	if _, err := srv.Users.Messages.Modify("me", messageID, modifyReq).Do(); err != nil {
		return fmt.Errorf("unable to archive message: %v", err)
	}

	return nil
}

// MuteThread applies the mute marker label to the whole thread and removes it
// from the inbox. Future messages in the thread are handled by the sync-time
// mute propagation, since Gmail has no native per-thread mute API.
func (s *Service) MuteThread(ctx context.Context, creds emaildomain.Credentials, threadID string) error {
	labelID, err := s.GetOrCreateLabel(ctx, creds, s.mutedLabel)
	if err != nil {
		return err
	}

	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return err
	}

	modifyReq := &gmail.ModifyThreadRequest{
		AddLabelIds:    []string{labelID},
		RemoveLabelIds: []string{"INBOX"},
	}
	if _, err := srv.Users.Threads.Modify("me", threadID, modifyReq).Do(); err != nil {
		return fmt.Errorf("unable to mute thread: %v", err)
	}

	return nil
}

// DeleteMessage moves a message to trash
func (s *Service) DeleteMessage(ctx context.Context, creds emaildomain.Credentials, messageID string) error {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return err
	}

	if _, err := srv.Users.Messages.Trash("me", messageID).Do(); err != nil {
		return fmt.Errorf("unable to trash message: %v", err)
	}

	return nil
}

// GetOrCreateLabel resolves a label name to its provider id, creating the
// label when missing. The per-account cache plus mutex keeps two concurrent
// actions from both creating the same label.
func (s *Service) GetOrCreateLabel(ctx context.Context, creds emaildomain.Credentials, name string) (string, error) {
	cacheKey := creds.AccountID + "/" + name

	s.labelMu.Lock()
	defer s.labelMu.Unlock()

	if id, ok := s.labelCache[cacheKey]; ok {
		return id, nil
	}

	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return "", err
	}

	labelsResp, err := srv.Users.Labels.List("me").Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve labels: %v", err)
	}

	for _, label := range labelsResp.Labels {
		if label.Name == name {
			s.labelCache[cacheKey] = label.Id
			return label.Id, nil
		}
	}

	created, err := srv.Users.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create label %q: %v", name, err)
	}

	s.labelCache[cacheKey] = created.Id
	return created.Id, nil
}

// Watch sets up push notifications for the account's inbox
func (s *Service) Watch(ctx context.Context, creds emaildomain.Credentials, topicName string) error {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return err
	}

	// Stop any existing watch first to avoid "only one push notification
	// client allowed" errors. Failure here is fine if no watch exists.
	_ = srv.Users.Stop("me").Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}
	if _, err := srv.Users.Watch("me", req).Do(); err != nil {
		return fmt.Errorf("unable to watch mailbox: %v", err)
	}

	return nil
}

// StopWatch stops push notifications for the account's inbox
func (s *Service) StopWatch(ctx context.Context, creds emaildomain.Credentials) error {
	srv, err := s.getGmailService(ctx, creds)
	if err != nil {
		return err
	}

	if err := srv.Users.Stop("me").Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %v", err)
	}

	return nil
}

// Helper functions

func convertMessage(msg *gmail.Message) *emaildomain.Message {
	bodyText, bodyHTML := getMessageBody(msg.Payload)

	// HTML-only messages still need plain text for classification
	if bodyText == "" && bodyHTML != "" {
		bodyText = html2text.HTML2Text(bodyHTML)
	}

	return &emaildomain.Message{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		LabelIDs:   msg.LabelIds,
		Snippet:    msg.Snippet,
		From:       getHeader(msg.Payload.Headers, "From"),
		To:         getHeader(msg.Payload.Headers, "To"),
		Subject:    getHeader(msg.Payload.Headers, "Subject"),
		BodyText:   bodyText,
		BodyHTML:   bodyHTML,
		ReceivedAt: time.Unix(msg.InternalDate/1000, 0),
		IsRead:     !hasLabel(msg.LabelIds, "UNREAD"),
		IsStarred:  hasLabel(msg.LabelIds, "STARRED"),
	}
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func getMessageBody(payload *gmail.MessagePart) (plain, html string) {
	if payload == nil {
		return "", ""
	}

	// Single-part message: the payload itself is the body
	if payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			if payload.MimeType == "text/html" {
				return "", string(data)
			}
			return string(data), ""
		}
	}

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
				if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
					html = string(data)
				}
			} else if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
				if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
					plain = string(data)
				}
			}
			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}
	findBody(payload.Parts)

	return plain, html
}

func hasLabel(labels []string, labelID string) bool {
	for _, label := range labels {
		if label == labelID {
			return true
		}
	}
	return false
}
