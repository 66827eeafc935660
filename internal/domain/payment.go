/**
 * @description
 * This file defines the core domain models for the payment-service: quotes,
 * receivables (incoming payments), executed outgoing payments, and the DTOs
 * exchanged with the mobile client over the HTTP API.
 *
 * @notes
 * - Quote, Receivable and OutgoingPayment are borrowed views over the payment
 *   network's authoritative state; the service only holds them for the span of
 *   a single request/response round trip.
 * - Using distinct request/response DTOs keeps the API contract stable even
 *   when the network-client payloads evolve.
 */

package domain

import "time"

// Quote is a time-bounded, priced commitment produced by the payment network.
// The orchestrator reads only the debit amount, to bound the spending limit of
// the interactive outgoing-payment grant.
type Quote struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Receiver      string    `json:"receiver"`
	DebitAmount   Amount    `json:"sendAmount"`
	ReceiveAmount Amount    `json:"receiveAmount"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Receivable is a server-side incoming-payment object representing an expected
// inbound payment, used to drive QR and WhatsApp payment requests.
type Receivable struct {
	ID             string     `json:"id"`
	WalletAddress  string     `json:"walletAddress"`
	IncomingAmount Amount     `json:"incomingAmount"`
	ReceivedAmount Amount     `json:"receivedAmount"`
	Description    string     `json:"description,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// OutgoingPayment is the result of a finalized funds-movement request.
type OutgoingPayment struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	QuoteID       string    `json:"quoteId"`
	DebitAmount   Amount    `json:"debitAmount"`
	ReceiveAmount Amount    `json:"receiveAmount"`
	SentAmount    Amount    `json:"sentAmount"`
	State         string    `json:"state"` // e.g., 'SENDING', 'SENT', 'FAILED'
	CreatedAt     time.Time `json:"createdAt"`
}

// ReceivableRequest is the DTO for incoming receivable-creation API requests.
// Amount is expressed in major currency units; conversion to minor units uses
// the resolved wallet's asset scale.
type ReceivableRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// QuoteRequest is the DTO for quote-creation API requests. When
// IncomingPaymentID is empty, a receivable is created on the payee wallet
// before quoting.
type QuoteRequest struct {
	WalletAddress     string  `json:"walletAddress"`
	Amount            float64 `json:"amount"`
	IncomingPaymentID string  `json:"incomingPaymentId,omitempty"`
}

// SendRequest is the DTO for initiating an interactive payment.
type SendRequest struct {
	QuoteID           string `json:"quoteId"`
	IncomingPaymentID string `json:"incomingPaymentId,omitempty"`
}

// CompleteRequest is the DTO for finalizing a payment after user consent.
type CompleteRequest struct {
	ContinueToken string `json:"continueToken"`
	ContinueURI   string `json:"continueUri"`
	QuoteID       string `json:"quoteId"`
	Description   string `json:"description,omitempty"`
}

// SendResult is the outcome of initiating a payment: exactly one of Payment
// (non-interactive grant, funds already moving) or Interaction (user consent
// required) is set.
type SendResult struct {
	Payment     *OutgoingPayment
	Interaction *InteractionDescriptor
}
