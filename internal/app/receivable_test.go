package app

import (
	"context"
	"errors"
	"testing"

	"github.com/direla/payment-service/internal/domain"
	"github.com/direla/payment-service/pkg/openpayments"
	"github.com/direla/payment-service/pkg/rabbitmq"
)

func TestCreateReceivable(t *testing.T) {
	network := &fakeNetwork{
		resolveWallet: resolveKnownWallets,
		requestGrant: func(authServer string, access []domain.GrantAccess, interact *domain.GrantInteract) (*domain.GrantResult, error) {
			if access[0].Type != domain.GrantTypeIncomingPayment {
				t.Fatalf("expected incoming-payment grant, got %q", access[0].Type)
			}
			if interact != nil {
				t.Fatal("incoming-payment grants must not request interaction")
			}
			return &domain.GrantResult{AccessToken: "incoming-token"}, nil
		},
		createIncoming: func(resourceServer, accessToken, walletID string, amount domain.Amount, metadata openpayments.PaymentMetadata) (*domain.Receivable, error) {
			if amount.Value != "5000" || amount.AssetCode != "ZAR" || amount.AssetScale != 2 {
				t.Fatalf("expected 50.00 ZAR as minor units 5000, got %+v", amount)
			}
			if walletID != testMerchantWallet {
				t.Fatalf("expected merchant wallet, got %q", walletID)
			}
			return &domain.Receivable{
				ID:             "https://resource.example/incoming-payments/rcv-1",
				WalletAddress:  walletID,
				IncomingAmount: amount,
				Description:    metadata.Description,
			}, nil
		},
	}
	service, publisher, _ := newTestService(t, network)

	result, err := service.CreateReceivable(context.Background(), domain.ReceivableRequest{
		Amount:      50.00,
		Currency:    "ZAR",
		Description: "Table 4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Receivable.IncomingAmount.Value != "5000" {
		t.Fatalf("expected incoming amount 5000, got %q", result.Receivable.IncomingAmount.Value)
	}
	if result.Amount != 50.00 || result.Currency != "ZAR" {
		t.Fatalf("expected major-unit echo 50.00 ZAR, got %v %s", result.Amount, result.Currency)
	}

	keys := publisher.routingKeys()
	if len(keys) != 1 || keys[0] != rabbitmq.RouteReceivableCreated {
		t.Fatalf("expected a receivable-created event, got %v", keys)
	}
}

func TestCreateReceivable_RejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []float64{0, -10.50} {
		network := &fakeNetwork{}
		service, publisher, _ := newTestService(t, network)

		_, err := service.CreateReceivable(context.Background(), domain.ReceivableRequest{Amount: amount})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
		if network.callCount() != 0 {
			t.Fatalf("amount %v: expected no network call, got %v", amount, network.calls)
		}
		if len(publisher.routingKeys()) != 0 {
			t.Fatalf("amount %v: expected no events", amount)
		}
	}
}
