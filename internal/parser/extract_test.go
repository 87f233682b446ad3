package parser

import (
	"strings"
	"testing"
)

func TestExtractTaxID(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{
			name: "bare valid 10 digit",
			text: "Please process order for company with Tax ID: 7707083893",
			want: "7707083893",
		},
		{
			name: "bare valid 12 digit",
			text: "payment from 500100732259 received",
			want: "500100732259",
		},
		{
			name: "labelled inn",
			text: "Counterparty INN: 7707083893, please verify",
			want: "7707083893",
		},
		{
			name: "cyrillic label",
			text: "ИНН: 7707083893",
			want: "7707083893",
		},
		{
			name: "checksum failure rejected",
			text: "Tax ID: 7707083894",
			want: "",
		},
		{
			name: "invalid candidate does not mask later valid one",
			text: "ref 1234567890 then INN 7707083893 follows",
			want: "7707083893",
		},
		{
			name: "first valid candidate wins",
			text: "7707083893 and also 500100732259",
			want: "7707083893",
		},
		{
			name: "digits embedded in longer run ignored",
			text: "order 77070838930001",
			want: "",
		},
		{
			name: "empty text",
			text: "",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractTaxID(tc.text); got != tc.want {
				t.Errorf("ExtractTaxID(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestExtractProjectNumber(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		body    string
		want    string
	}{
		{
			name:    "labelled in subject",
			subject: "Project number: PR-2024-15",
			body:    "",
			want:    "PR-2024-15",
		},
		{
			name:    "labelled hash form",
			subject: "",
			body:    "see project #4512 for context",
			want:    "4512",
		},
		{
			name:    "free standing code in subject",
			subject: "Re: AB-001 status update",
			body:    "no identifiers here",
			want:    "AB-001",
		},
		{
			name:    "subject scanned before body",
			subject: "XY-77 weekly report",
			body:    "related to ZZ-99",
			want:    "XY-77",
		},
		{
			name:    "cyrillic label",
			subject: "",
			body:    "Номер проекта: 2024-17",
			want:    "2024-17",
		},
		{
			name:    "free standing code matches lowercased",
			subject: "re: pr-001 status",
			body:    "",
			want:    "pr-001",
		},
		{
			name:    "uppercase label matches",
			subject: "PROJECT NO. 4417",
			body:    "",
			want:    "4417",
		},
		{
			name:    "no match",
			subject: "hello",
			body:    "just a greeting",
			want:    "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractProjectNumber(tc.subject, tc.body); got != tc.want {
				t.Errorf("ExtractProjectNumber(%q, %q) = %q, want %q", tc.subject, tc.body, got, tc.want)
			}
		})
	}
}

func TestExtractContacts_EmailWithName(t *testing.T) {
	contacts := ExtractContacts("Contact John Smith <john@example.com> for details")

	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d: %+v", len(contacts), contacts)
	}
	c := contacts[0]
	if c.Email != "john@example.com" {
		t.Errorf("email = %q, want john@example.com", c.Email)
	}
	full := c.FirstName + " " + c.LastName
	if !strings.Contains(full, "John") || !strings.Contains(full, "Smith") {
		t.Errorf("attributed name %q does not contain John Smith", full)
	}
}

func TestExtractContacts_DuplicateEmailsSuppressed(t *testing.T) {
	contacts := ExtractContacts("write to alice@corp.test or alice@corp.test directly")

	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(contacts))
	}
	if contacts[0].Email != "alice@corp.test" {
		t.Errorf("email = %q", contacts[0].Email)
	}
}

func TestExtractContacts_EmailDedupIgnoresCase(t *testing.T) {
	contacts := ExtractContacts("write to Alice@Corp.test or alice@corp.test directly")

	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d: %+v", len(contacts), contacts)
	}
	// The first spelling seen is the one kept.
	if contacts[0].Email != "Alice@Corp.test" {
		t.Errorf("email = %q, want Alice@Corp.test", contacts[0].Email)
	}
}

func TestExtractContacts_PhoneNormalization(t *testing.T) {
	contacts := ExtractContacts("call +7 (495) 123-45-67 or +7 (495) 123-45-67 any time")

	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d: %+v", len(contacts), contacts)
	}
	if contacts[0].Phone != "+74951234567" {
		t.Errorf("phone = %q, want +74951234567", contacts[0].Phone)
	}
}

func TestExtractContacts_ShortDigitRunsIgnored(t *testing.T) {
	contacts := ExtractContacts("order 123-456 shipped")

	if len(contacts) != 0 {
		t.Fatalf("expected no contacts, got %+v", contacts)
	}
}

func TestExtractContacts_EmailsPrecedePhones(t *testing.T) {
	contacts := ExtractContacts("Anna Petrova: +7 916 555 01 02, mail bob@firm.test")

	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d: %+v", len(contacts), contacts)
	}
	if contacts[0].Email != "bob@firm.test" {
		t.Errorf("first contact should be email-anchored, got %+v", contacts[0])
	}
	if contacts[1].Phone != "+79165550102" {
		t.Errorf("second contact phone = %q, want +79165550102", contacts[1].Phone)
	}
}

func TestExtractContacts_Empty(t *testing.T) {
	if got := ExtractContacts(""); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}
