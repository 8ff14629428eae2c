// Package event records domain events in the outbox. The worker publishes
// them to the message broker.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/repository"
)

// SubscriptionActivated is emitted once per applied payment.
type SubscriptionActivated struct {
	TenantID        uuid.UUID             `json:"tenant_id"`
	Plan            string                `json:"plan"`
	BillingInterval model.BillingInterval `json:"billing_interval"`
	OrderID         string                `json:"order_id"`
	PaymentID       string                `json:"payment_id"`
	EndDate         *time.Time            `json:"end_date,omitempty"`
}

// AccountInvited is emitted when an invitation is created.
type AccountInvited struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code"`
	RoleID    uuid.UUID `json:"role_id"`
	InvitedBy uuid.UUID `json:"invited_by"`
}

type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}
