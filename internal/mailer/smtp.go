package mailer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/google/uuid"

	"bookwire/internal/config"
	apperrors "bookwire/pkg/errors"
)

// SMTPSender sends via a plain SMTP relay. The relay's reply code class
// decides retryability: 4xx replies are transient, 5xx permanent.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if s.cfg.Host == "" {
		return "", apperrors.ErrValidation.WithDetail("message", "smtp host is not configured")
	}
	if msg.From == "" || len(msg.To) == 0 {
		return "", apperrors.ErrValidation.WithDetail("message", "message needs a sender and at least one recipient")
	}

	if err := ctx.Err(); err != nil {
		return "", apperrors.ErrTimeout.WithCause(err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), s.cfg.Host)
	body := buildMIMEMessage(msg, messageID)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" || s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	recipients := append(append([]string{}, msg.To...), msg.CC...)
	if err := smtp.SendMail(addr, auth, msg.From, recipients, []byte(body)); err != nil {
		return "", classifySMTPError(err)
	}

	return messageID, nil
}

func classifySMTPError(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code == 421 || protoErr.Code == 450 || protoErr.Code == 451:
			return apperrors.ErrThrottled.WithCause(err)
		case protoErr.Code >= 400 && protoErr.Code < 500:
			return apperrors.ErrTransport.WithCause(err)
		case protoErr.Code >= 500:
			return apperrors.ErrTransport.WithCause(err).AsPermanent()
		}
	}

	// Dial/handshake/IO failures carry no reply code and are retryable.
	return apperrors.ErrTransport.WithCause(err)
}

func buildMIMEMessage(msg Message, messageID string) string {
	boundary := strings.ReplaceAll(uuid.New().String(), "-", "")

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.CC, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.TextBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.HTMLBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}
