/**
 * @description
 * This file implements quote creation: resolving the payee and sender
 * wallets, creating a receivable on the payee wallet when the caller did not
 * bring one, and pricing the payment on the sender's resource server under a
 * quote grant.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/direla/payment-service/internal/domain"
	"github.com/direla/payment-service/pkg/openpayments"
)

// QuoteResult couples the created quote with the receivable it pays into,
// so the client can reuse the receivable on the send step.
type QuoteResult struct {
	Quote             *domain.Quote
	IncomingPaymentID string
}

// CreateQuote prices a payment to the given payee wallet. When
// req.IncomingPaymentID is empty a receivable for req.Amount is created on
// the payee wallet first and used as the quote receiver.
func (s *Service) CreateQuote(ctx context.Context, req domain.QuoteRequest) (*QuoteResult, error) {
	if req.WalletAddress == "" {
		return nil, ErrMissingWalletAddress
	}

	payee, err := s.network.ResolveWallet(ctx, req.WalletAddress)
	if err != nil {
		return nil, classifyResolveError(err)
	}
	sender, err := s.network.ResolveWallet(ctx, s.clientWallet)
	if err != nil {
		return nil, classifyResolveError(err)
	}

	receiver := req.IncomingPaymentID
	if receiver == "" {
		if req.Amount <= 0 {
			return nil, fmt.Errorf("%w: got %v", ErrInvalidAmount, req.Amount)
		}
		receivable, err := s.createPayeeReceivable(ctx, payee, req.Amount)
		if err != nil {
			return nil, err
		}
		receiver = receivable.ID
		log.Printf("level=info component=payment_service op=create_quote msg=\"created receivable for quote\" receivable_id=%s", receiver)
	}

	grant, err := s.network.RequestGrant(ctx, sender.AuthServer, []domain.GrantAccess{
		{
			Type:    domain.GrantTypeQuote,
			Actions: []string{"create", "read"},
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("quote grant denied: %w", err)
	}

	quote, err := s.network.CreateQuote(ctx, sender.ResourceServer, grant.AccessToken, sender.ID, receiver)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}

	log.Printf("level=info component=payment_service op=create_quote outcome=created quote_id=%s debit=%s %s", quote.ID, quote.DebitAmount.Value, quote.DebitAmount.AssetCode)
	return &QuoteResult{Quote: quote, IncomingPaymentID: receiver}, nil
}

// createPayeeReceivable creates the incoming payment that a fresh quote will
// pay into, denominated in the payee wallet's asset.
func (s *Service) createPayeeReceivable(ctx context.Context, payee *domain.WalletEndpoint, amount float64) (*domain.Receivable, error) {
	grant, err := s.network.RequestGrant(ctx, payee.AuthServer, []domain.GrantAccess{
		{
			Type:    domain.GrantTypeIncomingPayment,
			Actions: []string{"create", "read"},
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("incoming payment grant denied: %w", err)
	}

	incomingAmount := domain.NewAmount(amount, payee.AssetCode, payee.AssetScale)
	receivable, err := s.network.CreateIncomingPayment(ctx, payee.ResourceServer, grant.AccessToken, payee.ID, incomingAmount, openpayments.PaymentMetadata{
		Description: fmt.Sprintf("Payment of %s %v", payee.AssetCode, amount),
		Source:      paymentSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create incoming payment: %w", err)
	}
	return receivable, nil
}
