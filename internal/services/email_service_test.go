package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmailTemplates(t *testing.T) {
	tmpl := EmailTemplates{PortalURL: "https://portal.example.com/"}

	approved := tmpl.Approved("<Ann>")
	assert.Equal(t, "Account Approved - Portal", approved.Subject)
	assert.Contains(t, approved.Body, "&lt;Ann&gt;")
	assert.Contains(t, approved.Body, `href="https://portal.example.com/signin"`)

	assert.Contains(t, tmpl.Rejected("Ann").Body, "<b>rejected</b>")
	assert.Contains(t, tmpl.Deleted("Ann").Subject, "Deleted")

	reset := tmpl.ResetCode("012345", 10*time.Minute)
	assert.Contains(t, reset.Body, "<strong>012345</strong>")
	assert.Contains(t, reset.Body, "expire in 10 minutes")

	contact := tmpl.ContactMessage("v@y.com", "+1 555", "hello")
	assert.Contains(t, contact.Body, "+1 555")
	assert.Contains(t, contact.Body, "<blockquote>hello</blockquote>")
}

func TestSMTPNotifier_CancelledContext(t *testing.T) {
	n := NewSMTPNotifier("127.0.0.1", 1, "", "", "portal@x.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Send(ctx, "a@x.com", "s", "b")
	assert.ErrorIs(t, err, context.Canceled)
}
