/**
 * @description
 * This file implements the non-interactive receivable path: creating an
 * incoming-payment object on the merchant wallet so that QR-based and
 * WhatsApp-initiated payment requests have something to point at. Incoming-
 * payment grants do not require user consent, so this flow never touches the
 * pending-authorization store.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/direla/payment-service/internal/domain"
	"github.com/direla/payment-service/pkg/openpayments"
	"github.com/direla/payment-service/pkg/rabbitmq"
)

// ReceivableResult echoes the created receivable together with the requested
// major-unit amount for display and QR encoding.
type ReceivableResult struct {
	Receivable *domain.Receivable
	Amount     float64
	Currency   string
}

// CreateReceivable resolves the merchant wallet, obtains an incoming-payment
// grant and creates the receivable. The amount is given in major currency
// units and converted using the resolved wallet's asset scale. Non-positive
// amounts are rejected before any network call.
func (s *Service) CreateReceivable(ctx context.Context, req domain.ReceivableRequest) (*ReceivableResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidAmount, req.Amount)
	}

	wallet, err := s.network.ResolveWallet(ctx, s.merchantWallet)
	if err != nil {
		return nil, classifyResolveError(err)
	}

	grant, err := s.network.RequestGrant(ctx, wallet.AuthServer, []domain.GrantAccess{
		{
			Type:    domain.GrantTypeIncomingPayment,
			Actions: []string{"create", "read", "list"},
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("incoming payment grant denied: %w", err)
	}

	amount := domain.NewAmount(req.Amount, wallet.AssetCode, wallet.AssetScale)
	receivable, err := s.network.CreateIncomingPayment(ctx, wallet.ResourceServer, grant.AccessToken, wallet.ID, amount, openpayments.PaymentMetadata{
		Description: req.Description,
		Source:      paymentSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create incoming payment: %w", err)
	}

	log.Printf("level=info component=payment_service op=create_receivable outcome=created receivable_id=%s amount=%s", receivable.ID, amount.Value)
	s.publishEvent(ctx, rabbitmq.RouteReceivableCreated, rabbitmq.PaymentEvent{
		PaymentID: receivable.ID,
		Amount:    amount.Value,
		Currency:  amount.AssetCode,
		State:     "created",
	})
	if s.notifier != nil && s.merchantPhone != "" {
		s.notifier.NotifyMessage(ctx, s.merchantPhone,
			fmt.Sprintf("Payment request created for %s. Share the QR code to get paid.", amount.Display()))
	}

	return &ReceivableResult{
		Receivable: receivable,
		Amount:     req.Amount,
		Currency:   wallet.AssetCode,
	}, nil
}
