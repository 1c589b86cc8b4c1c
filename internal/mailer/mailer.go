// Package mailer delivers transactional email.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/util"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message is one outbound email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	PlainText string
	HTML      string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendgridSender sends through the SendGrid v3 API.
type SendgridSender struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

func NewSendgridSender(apiKey, fromAddress, fromName string) *SendgridSender {
	return &SendgridSender{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddress,
	}
}

func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.fromName, s.fromAddr)
	to := mail.NewEmail(msg.ToName, msg.ToAddress)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.PlainText, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		util.EmailsSentTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		util.EmailsSentTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	util.EmailsSentTotal.WithLabelValues("sent").Inc()
	return nil
}

// LogSender only logs messages; used when no email provider is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: util.GetLogger()}
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.logger.Info("Email not sent, no provider configured",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject))
	util.EmailsSentTotal.WithLabelValues("logged").Inc()
	return nil
}
