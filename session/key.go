package session

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// StandardAttrs holds the identity-bearing attributes carried on most
// OTLP records, decoded once per record by the caller.
type StandardAttrs struct {
	SessionID        string
	OrganizationID   string
	UserAccountUUID  string
	UserEmail        string
	TerminalType     string
	AppVersion       string
	EventTimestamp   time.Time // zero if absent; overrides the record's OTLP timestamp
}

// DeriveKey computes the session key for a record: session.id if
// present, else sanitize(user.email) + "-" + iso_hour_of(timestamp).
func DeriveKey(attrs StandardAttrs, recordTime time.Time) (key string, ok bool) {
	if attrs.SessionID != "" {
		return attrs.SessionID, true
	}
	if attrs.UserEmail == "" {
		return "", false
	}
	ts := recordTime
	if !attrs.EventTimestamp.IsZero() {
		ts = attrs.EventTimestamp
	}
	hour := ts.UTC().Format("2006-01-02T15")
	return sanitize(attrs.UserEmail) + "-" + hour, true
}

// sanitize folds a string through NFKC (so visually-identical Unicode
// email addresses normalize identically across platforms) and then
// replaces any character outside [A-Za-z0-9-] with '-'.
func sanitize(s string) string {
	folded := norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	return b.String()
}
