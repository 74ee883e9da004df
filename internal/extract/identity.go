package extract

import (
	"net/url"
	"strings"

	"github.com/lotas/mailvox/internal/types"
)

// Query parameters Gmail has used to carry the open conversation id.
var identityParams = []string{"th", "msgid", "message_id"}

// Identity derives the opaque change-detection token for the visible message.
// It prefers a conversation id from the page URL (query parameter, else a
// trailing fragment or path segment that looks like a thread id) and falls
// back to a subject+sender composite. Pure and idempotent: equality between
// successive samples is the only signal callers may use.
func Identity(pageURL string, msg types.ExtractedMessage) string {
	if u, err := url.Parse(pageURL); err == nil {
		q := u.Query()
		for _, key := range identityParams {
			if v := q.Get(key); v != "" {
				return v
			}
		}
		if id := trailingID(u.Fragment); id != "" {
			return id
		}
		if id := trailingID(u.Path); id != "" {
			return id
		}
	}
	if msg.Unreadable() {
		return ""
	}
	return msg.Subject + "|" + msg.Sender.Name + "|" + msg.Sender.Email
}

// trailingID returns the last slash-separated segment if it looks like a
// Gmail thread id (long, alphanumeric). Short segments like "inbox" or
// "starred" are view names, not ids.
func trailingID(s string) string {
	s = strings.Trim(s, "/")
	if s == "" {
		return ""
	}
	seg := s
	if i := strings.LastIndex(s, "/"); i >= 0 {
		seg = s[i+1:]
	}
	if len(seg) < 16 {
		return ""
	}
	for _, r := range seg {
		if (r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return ""
		}
	}
	return seg
}
