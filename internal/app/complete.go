/**
 * @description
 * This file implements the second half of the interactive authorization state
 * machine: receiving the out-of-band consent callback, and completing the
 * payment once the mobile client comes back with the continuation handle.
 *
 * The callback handler and the completion handler run in independent request
 * lifetimes; the pending-authorization store is the explicit message channel
 * between them. Matching is deferred entirely to completion time — no
 * in-flight initiation is bound to a future interaction reference ahead of
 * time, because the consent flow mints the reference only on finish.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/direla/payment-service/internal/domain"
)

// ReceiveAuthorizationCallback records a completed consent redirect. Re-
// delivery with the same interaction reference overwrites the stored record;
// the record self-expires after the store's TTL if never claimed.
func (s *Service) ReceiveAuthorizationCallback(ctx context.Context, record domain.PendingAuthorization) error {
	if record.InteractRef == "" {
		return ErrMissingInteractionRef
	}
	s.pending.Put(record)
	log.Printf("level=info component=payment_service op=authorization_callback outcome=stored interact_ref=%s quote_id=%s amount=%s %s",
		record.InteractRef, record.QuoteID, record.Amount, record.Currency)
	return nil
}

// CompletePayment claims the pending authorization matching the quote,
// continues the grant with the stored interaction reference, and executes the
// outgoing payment under the finalized token. The claim is single-use: a
// second completion for the same interaction reference fails with
// store.ErrAuthorizationNotFound.
func (s *Service) CompletePayment(ctx context.Context, req domain.CompleteRequest) (*domain.OutgoingPayment, error) {
	if req.ContinueToken == "" || req.ContinueURI == "" || req.QuoteID == "" {
		return nil, ErrMissingAuthParameters
	}

	authorization, err := s.pending.Claim(req.QuoteID)
	if err != nil {
		log.Printf("level=warn component=payment_service op=complete_payment outcome=not_found quote_id=%s", req.QuoteID)
		return nil, err
	}
	log.Printf("level=info component=payment_service op=complete_payment outcome=claimed quote_id=%s interact_ref=%s", req.QuoteID, authorization.InteractRef)

	wallet, err := s.network.ResolveWallet(ctx, s.clientWallet)
	if err != nil {
		return nil, classifyResolveError(err)
	}

	finalizedToken, err := s.network.ContinueGrant(ctx, req.ContinueURI, req.ContinueToken, authorization.InteractRef)
	if err != nil {
		return nil, fmt.Errorf("grant continuation failed: %w", err)
	}

	description := req.Description
	if description == "" {
		description = DefaultPaymentDescription
	}
	return s.executePayment(ctx, wallet, finalizedToken, req.QuoteID, description)
}
