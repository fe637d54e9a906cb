package imap

import (
	"context"
	"fmt"
	"io"
	"strings"

	emaildomain "github.com/devspinn/dtown-email/internal/email/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"
)

// Service is a fetch-only mail source for accounts connected over IMAP.
// It can populate the email cache for rule testing; rule actions need the
// Gmail gateway.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// FetchRecent retrieves up to limit most-recent INBOX messages.
// The IMAP protocol has no request context; cancellation is checked between
// protocol steps.
func (s *Service) FetchRecent(ctx context.Context, creds emaildomain.Credentials, limit int) ([]*emaildomain.Message, error) {
	if creds.IMAPHost == "" {
		return nil, fmt.Errorf("account has no IMAP host configured")
	}

	c, err := client.DialTLS(creds.IMAPHost, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to IMAP server: %v", err)
	}
	defer c.Logout()

	if err := c.Login(creds.IMAPUsername, creds.IMAPPassword); err != nil {
		return nil, fmt.Errorf("IMAP login failed: %v", err)
	}

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("unable to select INBOX: %v", err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	from := uint32(1)
	to := mbox.Messages
	if limit > 0 && mbox.Messages > uint32(limit) {
		from = mbox.Messages - uint32(limit) + 1
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(from, to)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, to-from+1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var result []*emaildomain.Message
	for msg := range messages {
		converted := convertIMAPMessage(msg, section)
		if converted != nil {
			result = append(result, converted)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("unable to fetch messages: %v", err)
	}

	// Newest first, matching the Gmail gateway
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}

	return result, nil
}

func convertIMAPMessage(msg *imap.Message, section *imap.BodySectionName) *emaildomain.Message {
	if msg == nil || msg.Envelope == nil {
		return nil
	}

	env := msg.Envelope

	id := env.MessageId
	if id == "" {
		id = fmt.Sprintf("imap-uid-%d", msg.Uid)
	}

	bodyText, bodyHTML := extractBodies(msg.GetBody(section))
	if bodyText == "" && bodyHTML != "" {
		bodyText = html2text.HTML2Text(bodyHTML)
	}

	snippet := strings.Join(strings.Fields(bodyText), " ")
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}

	return &emaildomain.Message{
		ID:         id,
		ThreadID:   id, // IMAP exposes no thread id; each message stands alone
		Snippet:    snippet,
		From:       formatAddresses(env.From),
		To:         formatAddresses(env.To),
		Subject:    env.Subject,
		BodyText:   bodyText,
		BodyHTML:   bodyHTML,
		ReceivedAt: env.Date,
		IsRead:     hasFlag(msg.Flags, imap.SeenFlag),
		IsStarred:  hasFlag(msg.Flags, imap.FlaggedFlag),
	}
}

func extractBodies(r io.Reader) (plain, html string) {
	if r == nil {
		return "", ""
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", ""
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch contentType {
		case "text/plain":
			if plain == "" {
				plain = string(body)
			}
		case "text/html":
			if html == "" {
				html = string(body)
			}
		}
	}

	return plain, html
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", addr.PersonalName, addr.Address()))
		} else {
			parts = append(parts, addr.Address())
		}
	}
	return strings.Join(parts, ", ")
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
