/**
 * @description
 * This file implements payment initiation: the first half of the interactive
 * authorization state machine. Given a previously created quote, it resolves
 * the source wallet and requests an outgoing-payment grant scoped to that
 * wallet and bounded by the quote's debit amount, declaring a redirect-based
 * consent channel whose finish callback embeds the quote id, debit amount and
 * currency plus a fresh random correlation nonce.
 *
 * The grant request has exactly two outcomes: a usable access token (no
 * consent required, the payment executes immediately), or an interaction
 * descriptor the caller must present to the user. Never both, never neither —
 * the network client enforces that shape.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/direla/payment-service/internal/domain"
	"github.com/direla/payment-service/pkg/openpayments"
	"github.com/direla/payment-service/pkg/rabbitmq"
)

// SendPayment initiates the payment for the given quote. The quote must still
// resolve on the network and must not have expired.
func (s *Service) SendPayment(ctx context.Context, req domain.SendRequest) (*domain.SendResult, error) {
	if req.QuoteID == "" {
		return nil, ErrMissingQuoteID
	}

	wallet, err := s.network.ResolveWallet(ctx, s.clientWallet)
	if err != nil {
		return nil, classifyResolveError(err)
	}

	quote, err := s.fetchQuote(ctx, wallet, req.QuoteID)
	if err != nil {
		return nil, err
	}
	if !quote.ExpiresAt.IsZero() && quote.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: quote %s expired at %s", ErrQuoteExpired, quote.ID, quote.ExpiresAt.Format(time.RFC3339))
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	grant, err := s.network.RequestGrant(ctx, wallet.AuthServer, []domain.GrantAccess{
		{
			Type:       domain.GrantTypeOutgoingPayment,
			Actions:    []string{"create", "read"},
			Identifier: wallet.ID,
			Limits:     &domain.GrantLimits{DebitAmount: &quote.DebitAmount},
		},
	}, &domain.GrantInteract{
		FinishURI: s.finishCallbackURL(req.QuoteID, quote.DebitAmount),
		Nonce:     nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("outgoing payment grant failed: %w", err)
	}

	if grant.Interact != nil {
		grant.Interact.Nonce = nonce
		log.Printf("level=info component=payment_service op=send_payment outcome=interaction_required quote_id=%s", req.QuoteID)
		s.publishEvent(ctx, rabbitmq.RouteAuthorizationRequired, rabbitmq.PaymentEvent{
			QuoteID:  req.QuoteID,
			Amount:   quote.DebitAmount.Value,
			Currency: quote.DebitAmount.AssetCode,
			State:    "authorization_required",
		})
		return &domain.SendResult{Interaction: grant.Interact}, nil
	}

	payment, err := s.executePayment(ctx, wallet, grant.AccessToken, req.QuoteID, DefaultPaymentDescription)
	if err != nil {
		return nil, err
	}
	return &domain.SendResult{Payment: payment}, nil
}

// fetchQuote reads the quote back from the network under a short-lived
// quote-read grant, mapping upstream 404s to ErrQuoteNotFound.
func (s *Service) fetchQuote(ctx context.Context, wallet *domain.WalletEndpoint, quoteID string) (*domain.Quote, error) {
	grant, err := s.network.RequestGrant(ctx, wallet.AuthServer, []domain.GrantAccess{
		{
			Type:    domain.GrantTypeQuote,
			Actions: []string{"read"},
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("quote read grant denied: %w", err)
	}

	quote, err := s.network.GetQuote(ctx, quoteID, grant.AccessToken)
	if err != nil {
		var apiErr *openpayments.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return nil, fmt.Errorf("%w: %s", ErrQuoteNotFound, quoteID)
		}
		return nil, fmt.Errorf("failed to read quote: %w", err)
	}
	return quote, nil
}

// finishCallbackURL builds the consent-finish redirect target, echoing the
// quote id and debit amount so the callback page can display them and the
// pending-authorization record can capture them as matching hints.
func (s *Service) finishCallbackURL(quoteID string, debit domain.Amount) string {
	params := url.Values{}
	params.Set("quoteId", quoteID)
	params.Set("amount", debit.Value)
	params.Set("currency", debit.AssetCode)
	return fmt.Sprintf("%s/payment/complete?%s", s.callbackBase, params.Encode())
}

// executePayment creates the outgoing payment under a finalized (or directly
// issued) access token and emits the lifecycle event and merchant
// notification. It is the only path that produces an OutgoingPayment.
func (s *Service) executePayment(ctx context.Context, wallet *domain.WalletEndpoint, accessToken, quoteID, description string) (*domain.OutgoingPayment, error) {
	payment, err := s.network.CreateOutgoingPayment(ctx, wallet.ResourceServer, accessToken, wallet.ID, quoteID, openpayments.PaymentMetadata{
		Description: description,
		Source:      paymentSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create outgoing payment: %w", err)
	}

	log.Printf("level=info component=payment_service op=execute_payment outcome=created payment_id=%s state=%s", payment.ID, payment.State)
	s.publishEvent(ctx, rabbitmq.RoutePaymentExecuted, rabbitmq.PaymentEvent{
		PaymentID: payment.ID,
		QuoteID:   quoteID,
		Amount:    payment.DebitAmount.Value,
		Currency:  payment.DebitAmount.AssetCode,
		State:     payment.State,
	})
	if s.notifier != nil && s.merchantPhone != "" {
		s.notifier.NotifyPaymentComplete(ctx,
			s.merchantPhone,
			domain.MajorUnits(payment.DebitAmount.Value, payment.DebitAmount.AssetScale),
			payment.DebitAmount.AssetCode,
		)
	}
	return payment, nil
}
