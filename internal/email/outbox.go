package email

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

// OutboxService queues mails in the outbox. Delivery happens in the worker.
type OutboxService struct {
	repo repository.OutboxRepository
}

func NewOutboxService(repo repository.OutboxRepository) *OutboxService {
	return &OutboxService{repo: repo}
}

func (s *OutboxService) SendInvitation(ctx context.Context, to string, d InvitationData) error {
	return s.enqueue(ctx, model.EventMailInvitation, to, TemplateInvitation, map[string]string{
		"name":        d.Name,
		"tenant_name": d.TenantName,
		"role_name":   d.RoleName,
		"link":        d.Link,
		"expires_at":  d.ExpiresAt.Format(time.RFC1123),
	})
}

func (s *OutboxService) SendPasswordReset(ctx context.Context, to string, d LinkData) error {
	return s.enqueue(ctx, model.EventMailPasswordReset, to, TemplatePasswordReset, linkData(d))
}

func (s *OutboxService) SendVerification(ctx context.Context, to string, d LinkData) error {
	return s.enqueue(ctx, model.EventMailVerification, to, TemplateVerification, linkData(d))
}

func (s *OutboxService) SendPaymentConfirmation(ctx context.Context, to string, d PaymentConfirmationData) error {
	return s.enqueue(ctx, model.EventMailPaymentConfirmation, to, TemplatePaymentConfirmation, map[string]string{
		"name":        d.Name,
		"tenant_name": d.TenantName,
		"plan":        d.Plan,
		"amount":      d.Amount,
		"currency":    d.Currency,
		"payment_id":  d.PaymentID,
		"period_end":  d.PeriodEnd.Format("2 Jan 2006"),
	})
}

func linkData(d LinkData) map[string]string {
	return map[string]string{
		"name":       d.Name,
		"link":       d.Link,
		"expires_at": d.ExpiresAt.Format(time.RFC1123),
	}
}

func (s *OutboxService) enqueue(ctx context.Context, eventType, to, template string, data map[string]string) error {
	payload, err := json.Marshal(model.MailMessage{To: to, Template: template, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode mail: %w", err)
	}
	if err := s.repo.Create(ctx, &model.OutboxEvent{EventType: eventType, Payload: payload}); err != nil {
		return fmt.Errorf("failed to queue %s mail: %w", template, err)
	}
	return nil
}

var _ Service = (*OutboxService)(nil)
