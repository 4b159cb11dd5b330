package tools

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// MailboxTool lists recent messages from an IMAP mailbox. It covers
// accounts that are not reachable through the Gmail API.
type MailboxTool struct {
	server   string
	username string
	password string
	mailbox  string
	dial     func(addr string) (*client.Client, error)
}

// NewMailboxTool creates the mailbox_recent tool. server is host:port and is
// dialed with TLS.
func NewMailboxTool(server, username, password, mailbox string) *MailboxTool {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &MailboxTool{
		server:   server,
		username: username,
		password: password,
		mailbox:  mailbox,
		dial: func(addr string) (*client.Client, error) {
			return client.DialTLS(addr, &tls.Config{})
		},
	}
}

func (m *MailboxTool) Name() string { return "mailbox_recent" }

func (m *MailboxTool) Description() string {
	return "Lists the most recent messages in the user's IMAP mailbox with sender, subject, date and read state."
}

func (m *MailboxTool) InputSchema() string {
	return `{"type":"object","properties":{"limit":{"type":"integer","description":"1-50, default 10"},"mailbox":{"type":"string","description":"Mailbox name, default INBOX"}}}`
}

func (m *MailboxTool) Execute(ctx context.Context, args string) (string, error) {
	var in struct {
		Limit   int    `json:"limit"`
		Mailbox string `json:"mailbox"`
	}
	if strings.HasPrefix(strings.TrimSpace(args), "{") || strings.TrimSpace(args) == "" {
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
	}
	if in.Limit <= 0 {
		in.Limit = 10
	}
	if in.Limit > 50 {
		in.Limit = 50
	}
	if in.Mailbox == "" {
		in.Mailbox = m.mailbox
	}

	c, err := m.dial(m.server)
	if err != nil {
		return "", fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Logout()

	// The IMAP client has no context support; closing the connection
	// unblocks any pending command when ctx ends.
	stop := context.AfterFunc(ctx, func() { c.Terminate() })
	defer stop()

	if err := c.Login(m.username, m.password); err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}

	mbox, err := c.Select(in.Mailbox, true)
	if err != nil {
		return "", fmt.Errorf("failed to select mailbox: %w", err)
	}
	if mbox.Messages == 0 {
		return "No messages found in mailbox.", nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(in.Limit) {
		from = mbox.Messages - uint32(in.Limit) + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid}, messages)
	}()

	var list []*imap.Message
	for msg := range messages {
		list = append(list, msg)
	}
	if err := <-done; err != nil {
		return "", fmt.Errorf("failed to fetch messages: %w", err)
	}

	var out strings.Builder
	count := 0
	// newest first
	for i := len(list) - 1; i >= 0; i-- {
		msg := list[i]
		if msg.Envelope == nil {
			continue
		}
		count++

		sender := ""
		if len(msg.Envelope.From) > 0 {
			sender = msg.Envelope.From[0].Address()
		}
		state := "unread"
		for _, f := range msg.Flags {
			if f == imap.SeenFlag {
				state = "read"
				break
			}
		}

		fmt.Fprintf(&out, "%d. [%s] UID: %d\n", count, state, msg.Uid)
		fmt.Fprintf(&out, "   From: %s\n", sender)
		fmt.Fprintf(&out, "   Subject: %s\n", msg.Envelope.Subject)
		fmt.Fprintf(&out, "   Date: %s\n\n", msg.Envelope.Date.Format("2006-01-02 15:04"))
	}
	if count == 0 {
		return "No messages found.", nil
	}
	fmt.Fprintf(&out, "Total: %d message(s)", count)
	return out.String(), nil
}
