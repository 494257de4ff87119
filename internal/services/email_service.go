package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// Notifier delivers one HTML email. Callers decide whether a failure matters;
// inside this module every call goes through the NotificationDispatcher.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type smtpNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPNotifier(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) Notifier {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &smtpNotifier{
		dialer: dialer,
		from:   fromEmail,
	}
}

func (s *smtpNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: %v", ErrNotifier, err)
	}
	return nil
}

// Templates. User supplied values are HTML escaped.

type EmailTemplates struct {
	PortalURL string
}

func (t EmailTemplates) signinURL() string {
	return strings.TrimRight(t.PortalURL, "/") + "/signin"
}

func (t EmailTemplates) Approved(firstName string) Notification {
	return Notification{
		Subject: "Account Approved - Portal",
		Body: fmt.Sprintf(`
		<p>Hello %s,</p>
		<p>Your account has been approved.</p>
		<p>You can now sign in and access the portal:</p>
		<p><a href="%s" target="_blank">Click here to access the portal</a></p>
		<p>Welcome aboard</p>
	`, html.EscapeString(firstName), html.EscapeString(t.signinURL())),
	}
}

func (t EmailTemplates) Rejected(firstName string) Notification {
	return Notification{
		Subject: "Account Rejected - Portal",
		Body: fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>We appreciate your interest in joining the portal.</p>
		<p>However, your account registration request has been <b>rejected</b> by the administrator.</p>
		<p>If you believe this was an error or would like to reapply, please contact the admin team.</p>
		<p><a href="%s" target="_blank">Click here to contact admin</a></p>
	`, html.EscapeString(firstName), html.EscapeString(t.PortalURL)),
	}
}

func (t EmailTemplates) Deleted(firstName string) Notification {
	return Notification{
		Subject: "Account Deleted - Portal",
		Body: fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Your account on the portal has been deleted by an administrator.</p>
		<p>If you believe this was a mistake, please contact the admin team.</p>
		<p><a href="%s" target="_blank">Click here to contact admin</a></p>
	`, html.EscapeString(firstName), html.EscapeString(t.PortalURL)),
	}
}

func (t EmailTemplates) ResetCode(code string, ttl time.Duration) Notification {
	return Notification{
		Subject: "Password Reset OTP - Portal",
		Body: fmt.Sprintf(`
		<p>Your OTP to reset password is: <strong>%s</strong></p>
		<p>This code will expire in %d minutes.</p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, html.EscapeString(code), int(ttl.Minutes())),
	}
}

func (t EmailTemplates) ContactMessage(from, phone, message string) Notification {
	if strings.TrimSpace(phone) == "" {
		phone = "N/A"
	}
	return Notification{
		Subject: "New Contact Message - Portal",
		Body: fmt.Sprintf(`
		<h3>New Contact Message from the Portal</h3>
		<p><b>From:</b> %s</p>
		<p><b>Phone:</b> %s</p>
		<p><b>Message:</b></p>
		<blockquote>%s</blockquote>
	`, html.EscapeString(from), html.EscapeString(phone), html.EscapeString(message)),
	}
}
