package mailclient

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	id "github.com/emersion/go-imap-id"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"

	"github.com/relay-crm/core/internal/database/models"
)

const fetchBatchSize = 10

// IMAPClient connects to mailboxes over IMAP.
type IMAPClient struct {
	creds      CredentialSource
	clientName string
}

// NewIMAPClient creates an IMAP client. clientName is sent in the IMAP ID
// command for servers that require client identification.
func NewIMAPClient(creds CredentialSource, clientName string) *IMAPClient {
	if clientName == "" {
		clientName = "Relay CRM"
	}
	return &IMAPClient{creds: creds, clientName: clientName}
}

// Connect dials the account's server, identifies itself and authenticates.
// Authentication failures come back as *AuthError so callers can skip the
// retry backoff.
func (ic *IMAPClient) Connect(account *models.MailAccount) (Session, error) {
	addr := fmt.Sprintf("%s:%d", account.Server, account.Port)
	dialer := &net.Dialer{Timeout: account.Timeout()}

	var c *client.Client
	if account.UseSSL {
		tlsConfig := &tls.Config{ServerName: account.Server}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
	} else {
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		c, err = client.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
	}

	c.Timeout = 5 * time.Minute

	// Some providers (188.com, 163.com) refuse login without an ID command.
	if ok, _ := c.Support("ID"); ok {
		idClient := id.NewClient(c)
		idClient.ID(id.ID{
			id.FieldName:    ic.clientName,
			id.FieldVersion: "1.0.0",
			id.FieldVendor:  ic.clientName,
		})
	}

	if account.AuthType == models.AuthTypeOAuth2 {
		accessToken, err := ic.creds.AccessToken(account)
		if err != nil {
			c.Logout()
			return nil, &AuthError{Err: err}
		}
		saslClient := NewXOAuth2Client(account.Username, accessToken)
		if err := c.Authenticate(saslClient); err != nil {
			c.Logout()
			return nil, &AuthError{Err: fmt.Errorf("XOAUTH2: %v", err)}
		}
	} else {
		password, err := ic.creds.Password(account)
		if err != nil {
			c.Logout()
			return nil, &AuthError{Err: err}
		}
		if err := c.Login(account.Username, password); err != nil {
			c.Logout()
			return nil, &AuthError{Err: err}
		}
	}

	return &imapSession{c: c}, nil
}

type imapSession struct {
	c *client.Client
}

func (s *imapSession) Close() error {
	return s.c.Logout()
}

// Fetch selects INBOX, searches messages since the given time and fetches
// envelopes plus full bodies in batches. When more than limit messages
// match, only the newest limit are fetched. The server hands batches back
// in ascending sequence order, so the collected slice is flipped before
// returning to satisfy the newest-first contract.
func (s *imapSession) Fetch(since time.Time, limit int) ([]RawMessage, error) {
	mbox, err := s.c.Select("INBOX", false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMailboxSelect, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	if !since.IsZero() {
		criteria.Since = time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.UTC)
	}

	seqNums, err := s.c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search failed: %v", err)
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	if limit > 0 && len(seqNums) > limit {
		seqNums = seqNums[len(seqNums)-limit:]
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, imap.FetchRFC822Size, section.FetchItem()}

	var result []RawMessage
	for i := 0; i < len(seqNums); i += fetchBatchSize {
		batchEnd := i + fetchBatchSize
		if batchEnd > len(seqNums) {
			batchEnd = len(seqNums)
		}

		seqSet := new(imap.SeqSet)
		seqSet.AddNum(seqNums[i:batchEnd]...)

		messages := make(chan *imap.Message, fetchBatchSize)
		done := make(chan error, 1)
		go func() {
			done <- s.c.Fetch(seqSet, items, messages)
		}()

		for msg := range messages {
			if msg == nil {
				continue
			}
			result = append(result, parseIMAPMessage(msg, section))
		}
		if err := <-done; err != nil {
			return result, fmt.Errorf("fetch failed: %v", err)
		}
	}

	reverseMessages(result)
	return result, nil
}

// reverseMessages flips a slice fetched in ascending sequence order into
// newest-first order.
func reverseMessages(msgs []RawMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// parseIMAPMessage converts one fetched IMAP message into a RawMessage,
// decoding the MIME tree into text, HTML and attachment parts.
func parseIMAPMessage(msg *imap.Message, section *imap.BodySectionName) RawMessage {
	raw := RawMessage{UID: msg.Uid, Size: uint(msg.Size)}

	if msg.Envelope != nil {
		raw.MessageID = msg.Envelope.MessageId
		raw.Subject = msg.Envelope.Subject
		raw.ReceivedAt = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			raw.Sender = formatAddress(msg.Envelope.From[0])
		}
		for _, addr := range msg.Envelope.To {
			raw.To = append(raw.To, formatAddress(addr))
		}
		for _, addr := range msg.Envelope.Cc {
			raw.Cc = append(raw.Cc, formatAddress(addr))
		}
	}

	literal := msg.GetBody(section)
	if literal == nil {
		return raw
	}
	content, err := io.ReadAll(literal)
	if err != nil || len(content) == 0 {
		return raw
	}

	r := bytes.NewReader(content)
	entity, err := message.Read(r)
	if err != nil {
		// Fall back to plain RFC 5322 parsing for malformed MIME.
		r.Seek(0, io.SeekStart)
		if m, err := mail.ReadMessage(r); err == nil {
			if raw.MessageID == "" {
				raw.MessageID = strings.TrimSpace(m.Header.Get("Message-Id"))
			}
			body, _ := io.ReadAll(m.Body)
			raw.BodyText = string(body)
		}
		return raw
	}

	if raw.MessageID == "" {
		raw.MessageID = strings.TrimSpace(entity.Header.Get("Message-Id"))
	}
	parseEntity(entity, &raw)
	return raw
}

// parseEntity recursively walks a MIME entity tree.
func parseEntity(entity *message.Entity, raw *RawMessage) {
	mediaType, params, _ := entity.Header.ContentType()

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		mr := entity.MultipartReader()
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			parseEntity(part, raw)
		}
	case mediaType == "text/plain" && raw.BodyText == "":
		body, _ := io.ReadAll(entity.Body)
		raw.BodyText = string(body)
	case mediaType == "text/html" && raw.BodyHTML == "":
		body, _ := io.ReadAll(entity.Body)
		raw.BodyHTML = string(body)
	default:
		parseAttachment(entity, mediaType, params, raw)
	}
}

func parseAttachment(entity *message.Entity, mediaType string, params map[string]string, raw *RawMessage) {
	disposition := entity.Header.Get("Content-Disposition")
	isAttachment := false
	var filename string

	if disposition != "" {
		dispType, dispParams, err := mime.ParseMediaType(disposition)
		if err == nil {
			if dispType == "attachment" || (dispType == "inline" && dispParams["filename"] != "") {
				isAttachment = true
				filename = dispParams["filename"]
			}
		}
	}

	if params["name"] != "" {
		isAttachment = true
		if filename == "" {
			filename = params["name"]
		}
	}

	// Decode MIME encoded-word filenames (=?utf-8?B?...?=)
	if filename != "" {
		dec := new(mime.WordDecoder)
		if decoded, err := dec.DecodeHeader(filename); err == nil {
			filename = decoded
		}
	}

	// Non-text parts with content count as attachments even without a
	// disposition header (inline images and the like).
	if !isAttachment && !strings.HasPrefix(mediaType, "text/") && mediaType != "" {
		isAttachment = true
	}
	if !isAttachment {
		return
	}

	content, _ := io.ReadAll(entity.Body)
	if len(content) == 0 {
		return
	}
	if filename == "" {
		ext := ".bin"
		if strings.HasPrefix(mediaType, "image/") {
			ext = "." + strings.TrimPrefix(mediaType, "image/")
		} else if mediaType == "application/pdf" {
			ext = ".pdf"
		}
		filename = "attachment" + ext
	}

	raw.Attachments = append(raw.Attachments, RawAttachment{
		Filename:    filename,
		ContentType: mediaType,
		Content:     content,
	})
}

// formatAddress formats an IMAP address to a string
func formatAddress(addr *imap.Address) string {
	if addr.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", addr.PersonalName, addr.MailboxName, addr.HostName)
	}
	return fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName)
}

// VerifyConnection opens and immediately closes a session, reporting
// whether the account's server and credentials work.
func VerifyConnection(c Client, account *models.MailAccount) error {
	session, err := c.Connect(account)
	if err != nil {
		return err
	}
	return session.Close()
}
