package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	accountrepo "github.com/devspinn/dtown-email/internal/account/repository"
	processorusecase "github.com/devspinn/dtown-email/internal/processor/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on the watch topic
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Service listens on the Gmail watch topic and triggers an inbox pass for
// the owning user whenever a watched mailbox changes.
type Service struct {
	pubsubClient *pubsub.Client
	accountRepo  accountrepo.AccountRepository
	processor    processorusecase.ProcessorUsecase
	projectID    string
	topicName    string
	subName      string

	// Deduplication: track last historyId per account to avoid re-running
	// the processor for redelivered notifications
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewService(projectID, topicName, credentialsFile string, accountRepo accountrepo.AccountRepository, processor processorusecase.ProcessorUsecase) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient:  client,
		accountRepo:   accountRepo,
		processor:     processor,
		projectID:     projectID,
		topicName:     topicName,
		subName:       topicName + "-sub", // Convention: topic-sub
		lastHistoryID: make(map[string]uint64),
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	// Ensure subscription exists
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notification GmailNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Printf("Failed to unmarshal notification: %v", err)
		return
	}

	log.Printf("[PubSub] Notification for %s (historyId: %d)", notification.EmailAddress, notification.HistoryID)

	account, err := s.accountRepo.FindByEmail(notification.EmailAddress)
	if err != nil {
		log.Printf("Error finding account for %s: %v", notification.EmailAddress, err)
		return
	}
	if account == nil || !account.IsActive {
		log.Printf("No active account for %s, ignoring notification", notification.EmailAddress)
		return
	}

	if s.seenHistoryID(account.ID, notification.HistoryID) {
		log.Printf("[PubSub] Skipping duplicate notification for account %s (historyId %d)", account.ID, notification.HistoryID)
		return
	}

	// Mailbox changed: run a sync + rule pass in the background so the
	// subscription loop keeps draining
	go func() {
		result, err := s.processor.ProcessInbox(context.Background(), account.UserID, 0)
		if err != nil {
			log.Printf("[PubSub] Inbox pass for user %s failed: %v", account.UserID, err)
			return
		}
		log.Printf("[PubSub] Inbox pass for user %s: %d processed, %d matched", account.UserID, result.Processed, result.Matched)
	}()
}

func (s *Service) seenHistoryID(accountID string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[accountID]; ok && historyID <= last {
		return true
	}
	s.lastHistoryID[accountID] = historyID
	return false
}
