package app

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/direla/payment-service/internal/domain"
	"github.com/direla/payment-service/pkg/openpayments"
	"github.com/direla/payment-service/pkg/rabbitmq"
)

// interactiveGrantNetwork wires a fakeNetwork whose outgoing-payment grants
// demand user consent while quote-read grants succeed directly. The captured
// interact pointer exposes the finish-callback parameters to assertions.
func interactiveGrantNetwork(quote *domain.Quote) (*fakeNetwork, *domain.GrantInteract) {
	captured := &domain.GrantInteract{}
	network := &fakeNetwork{
		resolveWallet: resolveKnownWallets,
		getQuote: func(quoteURL, accessToken string) (*domain.Quote, error) {
			if quoteURL != quote.ID {
				return nil, &openpayments.APIError{Status: 404, Detail: "quote not found"}
			}
			return quote, nil
		},
		requestGrant: func(authServer string, access []domain.GrantAccess, interact *domain.GrantInteract) (*domain.GrantResult, error) {
			switch access[0].Type {
			case domain.GrantTypeQuote:
				return &domain.GrantResult{AccessToken: "quote-read-token"}, nil
			case domain.GrantTypeOutgoingPayment:
				*captured = *interact
				return &domain.GrantResult{Interact: &domain.InteractionDescriptor{
					RedirectURL:   "https://auth.example/interact/xyz",
					ContinueToken: "continue-token",
					ContinueURI:   "https://auth.example/continue/xyz",
				}}, nil
			default:
				return nil, errors.New("unexpected grant type")
			}
		},
	}
	return network, captured
}

func TestSendPayment_RequiresQuoteID(t *testing.T) {
	network := &fakeNetwork{}
	service, _, _ := newTestService(t, network)

	_, err := service.SendPayment(context.Background(), domain.SendRequest{})
	if !errors.Is(err, ErrMissingQuoteID) {
		t.Fatalf("expected ErrMissingQuoteID, got %v", err)
	}
	if network.callCount() != 0 {
		t.Fatal("expected no network call without a quote id")
	}
}

func TestSendPayment_ReturnsInteractionWhenConsentRequired(t *testing.T) {
	quote := futureQuote("https://resource.example/quotes/q-1", "10000")
	network, captured := interactiveGrantNetwork(quote)
	service, publisher, _ := newTestService(t, network)

	result, err := service.SendPayment(context.Background(), domain.SendRequest{QuoteID: quote.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Payment != nil {
		t.Fatal("expected no payment on the interactive path")
	}
	if result.Interaction == nil {
		t.Fatal("expected an interaction descriptor")
	}
	if result.Interaction.RedirectURL != "https://auth.example/interact/xyz" {
		t.Fatalf("unexpected redirect url %q", result.Interaction.RedirectURL)
	}
	if result.Interaction.ContinueToken != "continue-token" || result.Interaction.ContinueURI != "https://auth.example/continue/xyz" {
		t.Fatal("expected continuation handle on the interaction descriptor")
	}
	if result.Interaction.Nonce == "" || result.Interaction.Nonce != captured.Nonce {
		t.Fatalf("expected descriptor nonce to echo the grant nonce, got %q vs %q", result.Interaction.Nonce, captured.Nonce)
	}

	// The finish callback must target the completion page and echo the quote
	// context so the stored record can be matched later.
	finish, err := url.Parse(captured.FinishURI)
	if err != nil {
		t.Fatalf("finish uri does not parse: %v", err)
	}
	if !strings.HasPrefix(captured.FinishURI, testCallbackBase+"/payment/complete?") {
		t.Fatalf("unexpected finish uri %q", captured.FinishURI)
	}
	query := finish.Query()
	if query.Get("quoteId") != quote.ID {
		t.Fatalf("expected quoteId echo, got %q", query.Get("quoteId"))
	}
	if query.Get("amount") != "10000" || query.Get("currency") != "ZAR" {
		t.Fatalf("expected debit amount echo, got amount=%q currency=%q", query.Get("amount"), query.Get("currency"))
	}

	keys := publisher.routingKeys()
	if len(keys) != 1 || keys[0] != rabbitmq.RouteAuthorizationRequired {
		t.Fatalf("expected a single authorization-required event, got %v", keys)
	}
}

func TestSendPayment_ExecutesDirectlyWhenNoConsentRequired(t *testing.T) {
	quote := futureQuote("https://resource.example/quotes/q-2", "2500")
	network := &fakeNetwork{
		resolveWallet: resolveKnownWallets,
		getQuote: func(quoteURL, accessToken string) (*domain.Quote, error) {
			return quote, nil
		},
		requestGrant: func(authServer string, access []domain.GrantAccess, interact *domain.GrantInteract) (*domain.GrantResult, error) {
			if access[0].Type == domain.GrantTypeOutgoingPayment {
				return &domain.GrantResult{AccessToken: "direct-token"}, nil
			}
			return &domain.GrantResult{AccessToken: "quote-read-token"}, nil
		},
		createOutgoing: func(resourceServer, accessToken, walletID, quoteID string, metadata openpayments.PaymentMetadata) (*domain.OutgoingPayment, error) {
			if accessToken != "direct-token" {
				t.Fatalf("expected the directly issued token, got %q", accessToken)
			}
			if metadata.Description != DefaultPaymentDescription {
				t.Fatalf("expected default description, got %q", metadata.Description)
			}
			return &domain.OutgoingPayment{
				ID:          "https://resource.example/outgoing-payments/op-1",
				QuoteID:     quoteID,
				DebitAmount: quote.DebitAmount,
				State:       "SENDING",
			}, nil
		},
	}
	service, publisher, notifier := newTestService(t, network)

	result, err := service.SendPayment(context.Background(), domain.SendRequest{QuoteID: quote.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Interaction != nil {
		t.Fatal("expected no interaction on the direct path")
	}
	if result.Payment == nil || result.Payment.State != "SENDING" {
		t.Fatalf("expected executed payment, got %+v", result.Payment)
	}

	keys := publisher.routingKeys()
	if len(keys) != 1 || keys[0] != rabbitmq.RoutePaymentExecuted {
		t.Fatalf("expected a single payment-executed event, got %v", keys)
	}
	if len(notifier.completed) != 1 || notifier.completed[0] != testMerchantPhone+" 25.00 ZAR" {
		t.Fatalf("unexpected merchant notifications: %v", notifier.completed)
	}
}

func TestSendPayment_RejectsExpiredQuote(t *testing.T) {
	quote := futureQuote("https://resource.example/quotes/q-3", "10000")
	quote.ExpiresAt = time.Now().Add(-time.Minute)
	network, _ := interactiveGrantNetwork(quote)
	service, publisher, _ := newTestService(t, network)

	_, err := service.SendPayment(context.Background(), domain.SendRequest{QuoteID: quote.ID})
	if !errors.Is(err, ErrQuoteExpired) {
		t.Fatalf("expected ErrQuoteExpired, got %v", err)
	}
	if len(publisher.routingKeys()) != 0 {
		t.Fatal("expected no events for a rejected quote")
	}
}

func TestSendPayment_MapsUnknownQuoteToNotFound(t *testing.T) {
	quote := futureQuote("https://resource.example/quotes/q-4", "10000")
	network, _ := interactiveGrantNetwork(quote)
	service, _, _ := newTestService(t, network)

	_, err := service.SendPayment(context.Background(), domain.SendRequest{QuoteID: "https://resource.example/quotes/missing"})
	if !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound, got %v", err)
	}
}
