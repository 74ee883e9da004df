package extract

import (
	"testing"

	"github.com/lotas/mailvox/internal/types"
)

func TestIdentityFromQueryParam(t *testing.T) {
	got := Identity("https://mail.google.com/mail/u/0/?th=18f2a9c4d7e6b501", types.ExtractedMessage{})
	if got != "18f2a9c4d7e6b501" {
		t.Errorf("identity = %q, want thread id from query", got)
	}
}

func TestIdentityFromFragment(t *testing.T) {
	got := Identity("https://mail.google.com/mail/u/0/#inbox/FMfcgzQbdrVxkNMBmRrqdGjkSvVKxzfB", types.ExtractedMessage{})
	if got != "FMfcgzQbdrVxkNMBmRrqdGjkSvVKxzfB" {
		t.Errorf("identity = %q, want fragment thread id", got)
	}
}

func TestIdentityIgnoresViewNames(t *testing.T) {
	msg := types.ExtractedMessage{
		Subject: "Invoice Due",
		Sender:  types.Sender{Name: "Acme Billing", Email: "billing@acme.com"},
	}
	got := Identity("https://mail.google.com/mail/u/0/#inbox", msg)
	want := "Invoice Due|Acme Billing|billing@acme.com"
	if got != want {
		t.Errorf("identity = %q, want subject+sender fallback %q", got, want)
	}
}

func TestIdentityEmptyWhenNothingKnown(t *testing.T) {
	if got := Identity("https://mail.google.com/mail/u/0/#inbox", types.ExtractedMessage{}); got != "" {
		t.Errorf("identity = %q, want empty", got)
	}
}

func TestIdentityIsIdempotent(t *testing.T) {
	msg := types.ExtractedMessage{Subject: "Hi", Sender: types.Sender{Name: "Jo"}}
	url := "https://mail.google.com/mail/u/0/#inbox/FMfcgzQbdrVxkNMBmRrqdGjkSvVKxzfB"
	if Identity(url, msg) != Identity(url, msg) {
		t.Error("identity must be stable for identical input")
	}
}
