/**
 * @description
 * This file contains the core business logic for the payment-service. The
 * `Service` struct orchestrates every money-movement flow: resolving wallet
 * endpoints, negotiating grants with the authorization server, creating
 * receivables and quotes, and driving the interactive payment-authorization
 * state machine through to an executed outgoing payment.
 *
 * Key features:
 * - Owns the pending-authorization store that bridges the out-of-band consent
 *   callback with the in-app completion request.
 * - Publishes payment lifecycle events to RabbitMQ and notifies the WhatsApp
 *   sink; both are fire-and-forget and never fail a payment.
 * - Validation failures are rejected before any network call is made.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - internal/domain, internal/store: Domain models and the pending store.
 * - pkg/openpayments, pkg/whatsapp, pkg/rabbitmq: External collaborators.
 */

package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/direla/payment-service/internal/domain"
	"github.com/direla/payment-service/internal/store"
	"github.com/direla/payment-service/pkg/openpayments"
	"github.com/direla/payment-service/pkg/rabbitmq"
	"github.com/direla/payment-service/pkg/whatsapp"
	"github.com/google/uuid"
)

// Sentinel errors surfaced to the API layer.
var (
	ErrInvalidAmount         = errors.New("amount must be a positive value")
	ErrMissingWalletAddress  = errors.New("wallet address is required")
	ErrMissingQuoteID        = errors.New("quote id is required")
	ErrMissingAuthParameters = errors.New("missing required authorization parameters")
	ErrMissingInteractionRef = errors.New("interaction reference is required")
	ErrQuoteExpired          = errors.New("quote has expired")
	ErrQuoteNotFound         = errors.New("quote not found")
	ErrWalletNotFound        = errors.New("wallet not found")
)

// DefaultPaymentDescription is the descriptive tag attached to outgoing
// payments when the caller supplies none.
const DefaultPaymentDescription = "Direla QR Payment"

const paymentSource = "Direla App"

// Service provides the core business logic for payments.
type Service struct {
	network        openpayments.API
	pending        *store.PendingStore
	events         rabbitmq.Publisher
	notifier       whatsapp.Notifier
	clientWallet   string
	merchantWallet string
	merchantPhone  string
	callbackBase   string
	eventExchange  string
}

// NewService creates a new payment service instance.
func NewService(
	network openpayments.API,
	pending *store.PendingStore,
	events rabbitmq.Publisher,
	notifier whatsapp.Notifier,
	clientWallet string,
	merchantWallet string,
	merchantPhone string,
	callbackBase string,
	eventExchange string,
) *Service {
	return &Service{
		network:        network,
		pending:        pending,
		events:         events,
		notifier:       notifier,
		clientWallet:   clientWallet,
		merchantWallet: merchantWallet,
		merchantPhone:  merchantPhone,
		callbackBase:   callbackBase,
		eventExchange:  eventExchange,
	}
}

// ClientWallet returns the configured customer (sending) wallet address.
func (s *Service) ClientWallet() string { return s.clientWallet }

// MerchantWallet returns the configured merchant (receiving) wallet address.
func (s *Service) MerchantWallet() string { return s.merchantWallet }

// ResolveWallet fetches the metadata of an arbitrary wallet endpoint.
func (s *Service) ResolveWallet(ctx context.Context, walletURL string) (*domain.WalletEndpoint, error) {
	if walletURL == "" {
		return nil, ErrMissingWalletAddress
	}
	wallet, err := s.network.ResolveWallet(ctx, walletURL)
	if err != nil {
		return nil, classifyResolveError(err)
	}
	return wallet, nil
}

// newNonce generates the random correlation nonce attached to interactive
// grant requests. It is used for traceability only, not as a security
// credential by itself.
func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// publishEvent sends a lifecycle event; failures are logged and dropped.
func (s *Service) publishEvent(ctx context.Context, routingKey string, event rabbitmq.PaymentEvent) {
	if s.events == nil {
		return
	}
	event.EventID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	if err := s.events.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=payment_service msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// classifyResolveError maps upstream 404s on wallet resolution to the
// service's not-found sentinel while keeping the upstream detail wrapped.
func classifyResolveError(err error) error {
	var apiErr *openpayments.APIError
	if errors.As(err, &apiErr) && apiErr.Status == 404 {
		return fmt.Errorf("%w: %v", ErrWalletNotFound, err)
	}
	return err
}
