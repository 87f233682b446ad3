// Command imapcheck verifies mailbox connectivity from the command line:
// it dials the server with the given credentials, selects INBOX and lists
// the most recent envelopes. Useful when a provider rejects logins.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/relay-crm/core/internal/database/models"
	"github.com/relay-crm/core/internal/mailclient"
)

// staticCreds feeds one fixed password into the mail client.
type staticCreds struct {
	password string
}

func (s staticCreds) Password(*models.MailAccount) (string, error) {
	return s.password, nil
}

func (s staticCreds) AccessToken(*models.MailAccount) (string, error) {
	return "", fmt.Errorf("OAuth accounts are not supported by imapcheck")
}

func main() {
	server := flag.String("server", "", "IMAP server host")
	port := flag.Int("port", 993, "IMAP server port")
	username := flag.String("user", "", "login username")
	password := flag.String("password", "", "login password")
	useSSL := flag.Bool("ssl", true, "use TLS")
	days := flag.Int("days", 7, "fetch messages from the last N days")
	limit := flag.Int("limit", 5, "maximum messages to list")
	flag.Parse()

	if *server == "" || *username == "" || *password == "" {
		log.Fatal("usage: imapcheck -server imap.example.com -user you@example.com -password secret")
	}

	account := &models.MailAccount{
		Email:          *username,
		Server:         *server,
		Port:           *port,
		Username:       *username,
		UseSSL:         *useSSL,
		TimeoutSeconds: 30,
		AuthType:       models.AuthTypePassword,
	}

	client := mailclient.NewIMAPClient(staticCreds{password: *password}, "relay-crm-imapcheck")

	log.Printf("Connecting to %s:%d...", *server, *port)
	session, err := client.Connect(account)
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer session.Close()
	log.Println("Connected and authenticated.")

	since := time.Now().AddDate(0, 0, -*days)
	messages, err := session.Fetch(since, *limit)
	if err != nil {
		log.Fatalf("Fetch failed: %v", err)
	}

	if len(messages) == 0 {
		log.Printf("No messages in the last %d days.", *days)
		return
	}

	log.Printf("Fetched %d messages:", len(messages))
	fmt.Println("--------------------------------------------------")
	for _, msg := range messages {
		fmt.Printf("Subject: %s\n", msg.Subject)
		fmt.Printf("From: %s\n", msg.Sender)
		fmt.Printf("Date: %s\n", msg.ReceivedAt)
		fmt.Printf("Attachments: %d\n", len(msg.Attachments))
		fmt.Println("--------------------------------------------------")
	}
}
