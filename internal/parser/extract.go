// Package parser extracts structured business identifiers from unstructured
// message text: checksum-validated tax IDs, project numbers and contact
// tuples. All functions are pure; extraction failures return zero values,
// never errors.
package parser

import (
	"regexp"
	"strings"

	"github.com/relay-crm/core/internal/database/models"
)

// Tax ID patterns in fixed priority order: bare 10-digit run, bare 12-digit
// run, then labelled forms. The first match that passes the checksum wins;
// multiple genuine identifiers in one text are never disambiguated beyond
// first-match.
var taxIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{10})\b`),
	regexp.MustCompile(`\b(\d{12})\b`),
	regexp.MustCompile(`(?i)tax\s*id[:\s]*(\d{10,12})`),
	regexp.MustCompile(`(?i)\binn[:\s]*(\d{10,12})`),
	regexp.MustCompile(`(?i)ИНН[:\s]*(\d{10,12})`),
}

// Project number patterns: labelled forms plus two free-standing formats
// (PR-001 and 2024-PR-01 style). All patterns match case-insensitively and
// the first raw match is returned, unvalidated.
var projectNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:project|проект)\s*(?:number|no\.?|[№#])\s*[:\s]?\s*([A-Za-z0-9-]+)`),
	regexp.MustCompile(`(?i)\b([A-Z]{2,}-\d{2,})\b`),
	regexp.MustCompile(`(?i)\b(\d{4}-[A-Z]{2,}-\d{2,})\b`),
	regexp.MustCompile(`(?i)номер\s*проекта[:\s]*([A-Za-z0-9-]+)`),
}

var (
	emailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
	phonePattern = regexp.MustCompile(`[+]?\d[\d\s\-()]{5,}\d`)
	nonPhoneChar = regexp.MustCompile(`[^+\d]`)
)

// ExtractTaxID scans text for a tax identifier. Candidates are collected in
// pattern priority order and the first one that passes IsValidTaxID is
// returned; if none validate, the result is empty.
func ExtractTaxID(text string) string {
	if text == "" {
		return ""
	}

	for _, pattern := range taxIDPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if IsValidTaxID(match[1]) {
				return match[1]
			}
		}
	}
	return ""
}

// ExtractProjectNumber scans subject and body for a project number and
// returns the first raw match, or empty if nothing matches.
func ExtractProjectNumber(subject, body string) string {
	text := subject + " " + body

	for _, pattern := range projectNumberPatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			return match[1]
		}
	}
	return ""
}

// ExtractContacts finds contact tuples in text. Email-anchored contacts
// come first, in order of first appearance; phone-only contacts follow.
// A name is attributed to an email via the surrounding "Name <email>" or
// "Name (email)" forms, and to a phone via a preceding "Name: phone" form.
// Duplicate phone numbers (after stripping separators) are suppressed.
func ExtractContacts(text string) []models.ParsedContact {
	if text == "" {
		return nil
	}

	var contacts []models.ParsedContact
	seenEmails := make(map[string]bool)

	for _, email := range emailPattern.FindAllString(text, -1) {
		// Addresses differing only in case are one contact; the first
		// spelling seen is the one kept.
		key := strings.ToLower(email)
		if seenEmails[key] {
			continue
		}
		seenEmails[key] = true

		contact := models.ParsedContact{Email: email}
		contact.FirstName, contact.LastName = nameForEmail(text, email)
		contacts = append(contacts, contact)
	}

	seenPhones := make(map[string]bool)
	for _, raw := range phonePattern.FindAllString(text, -1) {
		phone := nonPhoneChar.ReplaceAllString(raw, "")
		if countDigits(phone) < 7 || seenPhones[phone] {
			continue
		}
		seenPhones[phone] = true

		contact := models.ParsedContact{Phone: phone}
		contact.FirstName, contact.LastName = nameForPhone(text, raw)
		contacts = append(contacts, contact)
	}

	return contacts
}

// nameForEmail looks for a "Name <email>" or "Name (email)" form around the
// given address and splits the attributed name.
func nameForEmail(text, email string) (first, last string) {
	pattern, err := regexp.Compile(`(?i)([A-Za-zА-Яа-яЁё\s]+)\s*[<(]\s*` + regexp.QuoteMeta(email) + `\s*[>)]`)
	if err != nil {
		return "", ""
	}
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return "", ""
	}
	return splitName(match[1])
}

// nameForPhone looks for a "Name: phone" or "Name - phone" form preceding
// the raw phone text.
func nameForPhone(text, rawPhone string) (first, last string) {
	pattern, err := regexp.Compile(`(?i)([A-Za-zА-Яа-яЁё\s]+)\s*[:\-]?\s*` + regexp.QuoteMeta(rawPhone))
	if err != nil {
		return "", ""
	}
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return "", ""
	}
	return splitName(match[1])
}

// splitName splits a free-form name into first and last parts; a single
// word becomes the first name.
func splitName(name string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func countDigits(s string) int {
	n := 0
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n++
		}
	}
	return n
}
