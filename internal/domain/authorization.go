/**
 * @description
 * This file defines the grant-negotiation models: the access scopes requested
 * from the payment network's authorization server, the interaction descriptor
 * returned when user consent is required, and the pending-authorization record
 * that bridges the out-of-band consent callback with the in-app completion
 * request.
 */

package domain

import "time"

// Grant operation kinds understood by the authorization server.
const (
	GrantTypeIncomingPayment = "incoming-payment"
	GrantTypeQuote           = "quote"
	GrantTypeOutgoingPayment = "outgoing-payment"
)

// GrantAccess is one permission entry within a grant request. Identifier and
// Limits are set only for outgoing-payment access, binding the grant to the
// paying wallet and to the quote's debit amount.
type GrantAccess struct {
	Type       string       `json:"type"`
	Actions    []string     `json:"actions"`
	Identifier string       `json:"identifier,omitempty"`
	Limits     *GrantLimits `json:"limits,omitempty"`
}

// GrantLimits caps what an outgoing-payment grant may spend.
type GrantLimits struct {
	DebitAmount *Amount `json:"debitAmount,omitempty"`
}

// GrantInteract declares the interactive consent channel for a grant request:
// a redirect-based start and a finish callback carrying the correlation nonce.
type GrantInteract struct {
	FinishURI string
	Nonce     string
}

// GrantResult is what the authorization server returns for a grant request:
// either a usable access token, or an interaction descriptor when explicit
// user consent is required. Never both, never neither.
type GrantResult struct {
	AccessToken string
	Interact    *InteractionDescriptor
}

// InteractionDescriptor carries everything the caller needs to run the
// redirect-based consent flow and later continue the grant.
type InteractionDescriptor struct {
	RedirectURL   string `json:"authUrl"`
	ContinueToken string `json:"continueToken"`
	ContinueURI   string `json:"continueUri"`
	Nonce         string `json:"nonce"`
}

// PendingAuthorization is the record stored when the out-of-band consent flow
// redirects back to the service. It is keyed by the opaque interaction
// reference supplied by the consent flow, consumed exactly once by the
// completion step, and garbage-collected after a fixed time-to-live.
type PendingAuthorization struct {
	InteractRef string    `json:"interact_ref"`
	Hash        string    `json:"hash"`
	QuoteID     string    `json:"quoteId"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"createdAt"`
}
