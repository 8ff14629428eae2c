package email

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/pkg/circuitbreaker"
)

// Deliverer hands a rendered mail to a transport.
type Deliverer interface {
	Deliver(ctx context.Context, msg model.MailMessage) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPDeliverer struct {
	dialer  *gomail.Dialer
	from    string
	breaker *circuitbreaker.CircuitBreaker
}

func NewSMTPDeliverer(cfg SMTPConfig, breaker *circuitbreaker.CircuitBreaker) *SMTPDeliverer {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{Name: "smtp"})
	}
	return &SMTPDeliverer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		breaker: breaker,
	}
}

// Message builds the gomail message for msg.
func (d *SMTPDeliverer) Message(msg model.MailMessage) (*gomail.Message, error) {
	subject, body, err := Render(msg.Template, msg.Data)
	if err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subject)
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/plain", body)
	return m, nil
}

func (d *SMTPDeliverer) Deliver(ctx context.Context, msg model.MailMessage) error {
	m, err := d.Message(msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.breaker.Execute(func() error {
		if err := d.dialer.DialAndSend(m); err != nil {
			return fmt.Errorf("failed to send %s mail: %w", msg.Template, err)
		}
		return nil
	})
}

// LogDeliverer writes mails to the log instead of sending them.
type LogDeliverer struct {
	logger zerolog.Logger
}

func NewLogDeliverer(logger zerolog.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Deliver(_ context.Context, msg model.MailMessage) error {
	subject, body, err := Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}
	d.logger.Info().Str("to", msg.To).Str("subject", subject).Str("body", body).Msg("mail delivered to log")
	return nil
}

// OutboxHandler decodes mail outbox events and delivers them with d.
func OutboxHandler(d Deliverer) func(ctx context.Context, event *model.OutboxEvent) error {
	return func(ctx context.Context, event *model.OutboxEvent) error {
		var msg model.MailMessage
		if err := json.Unmarshal(event.Payload, &msg); err != nil {
			return fmt.Errorf("failed to decode mail payload: %w", err)
		}
		return d.Deliver(ctx, msg)
	}
}
