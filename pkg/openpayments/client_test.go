package openpayments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/direla/payment-service/internal/domain"
)

func newTestClient(resolveTimeout time.Duration) *Client {
	return NewClient("key-1", "https://wallet.example/customer", resolveTimeout)
}

func TestResolveWallet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept: application/json, got %q", r.Header.Get("Accept"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":             "https://wallet.example/merchant",
			"publicName":     "Merchant",
			"assetCode":      "ZAR",
			"assetScale":     2,
			"authServer":     "https://auth.example",
			"resourceServer": "https://resource.example",
		})
	}))
	defer server.Close()

	wallet, err := newTestClient(0).ResolveWallet(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wallet.PublicName != "Merchant" {
		t.Fatalf("expected publicName decoded as display name, got %q", wallet.PublicName)
	}
	if wallet.AssetCode != "ZAR" || wallet.AssetScale != 2 {
		t.Fatalf("unexpected asset: %s/%d", wallet.AssetCode, wallet.AssetScale)
	}
	if wallet.AuthServer != "https://auth.example" {
		t.Fatalf("unexpected auth server %q", wallet.AuthServer)
	}
}

func TestResolveWallet_DefaultsIDAndName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"assetCode": "ZAR", "assetScale": 2})
	}))
	defer server.Close()

	wallet, err := newTestClient(0).ResolveWallet(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wallet.ID != server.URL {
		t.Fatalf("expected wallet id to fall back to the address, got %q", wallet.ID)
	}
	if wallet.PublicName != "Wallet" {
		t.Fatalf("expected display name to default to Wallet, got %q", wallet.PublicName)
	}
}

func TestResolveWallet_TimeoutClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := newTestClient(20 * time.Millisecond).ResolveWallet(context.Background(), server.URL)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestResolveWallet_UpstreamErrorCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such wallet", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(0).ResolveWallet(context.Background(), server.URL)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", apiErr.Status)
	}
}

func TestRequestGrant(t *testing.T) {
	t.Run("direct token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			client := body["client"].(map[string]interface{})
			if client["name"] != "Direla Mobile App" {
				t.Errorf("expected client name in grant payload, got %v", client["name"])
			}
			if _, hasInteract := body["interact"]; hasInteract {
				t.Error("expected no interact block for a non-interactive grant")
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": map[string]interface{}{"value": "token-1"},
			})
		}))
		defer server.Close()

		result, err := newTestClient(0).RequestGrant(context.Background(), server.URL, []domain.GrantAccess{
			{Type: domain.GrantTypeIncomingPayment, Actions: []string{"create", "read"}},
		}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.AccessToken != "token-1" || result.Interact != nil {
			t.Fatalf("expected direct token only, got %+v", result)
		}
	})

	t.Run("interaction required", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Interact struct {
					Start  []string `json:"start"`
					Finish struct {
						Method string `json:"method"`
						URI    string `json:"uri"`
						Nonce  string `json:"nonce"`
					} `json:"finish"`
				} `json:"interact"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if len(body.Interact.Start) != 1 || body.Interact.Start[0] != "redirect" {
				t.Errorf("expected redirect start mode, got %v", body.Interact.Start)
			}
			if body.Interact.Finish.Method != "redirect" || body.Interact.Finish.URI == "" || body.Interact.Finish.Nonce == "" {
				t.Errorf("expected a complete finish block, got %+v", body.Interact.Finish)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"interact": map[string]interface{}{"redirect": "https://auth.example/interact/xyz"},
				"continue": map[string]interface{}{
					"access_token": map[string]interface{}{"value": "continue-token"},
					"uri":          "https://auth.example/continue/xyz",
				},
			})
		}))
		defer server.Close()

		result, err := newTestClient(0).RequestGrant(context.Background(), server.URL, []domain.GrantAccess{
			{Type: domain.GrantTypeOutgoingPayment, Actions: []string{"create", "read"}},
		}, &domain.GrantInteract{FinishURI: "http://localhost:3001/payment/complete?quoteId=q-1", Nonce: "nonce-1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.AccessToken != "" || result.Interact == nil {
			t.Fatalf("expected interaction descriptor only, got %+v", result)
		}
		if result.Interact.RedirectURL != "https://auth.example/interact/xyz" {
			t.Fatalf("unexpected redirect url %q", result.Interact.RedirectURL)
		}
		if result.Interact.ContinueToken != "continue-token" || result.Interact.ContinueURI != "https://auth.example/continue/xyz" {
			t.Fatalf("unexpected continuation handle: %+v", result.Interact)
		}
	})

	t.Run("neither token nor interaction is an upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{})
		}))
		defer server.Close()

		_, err := newTestClient(0).RequestGrant(context.Background(), server.URL, nil, nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if apiErr.Status != http.StatusBadGateway {
			t.Fatalf("expected 502 classification, got %d", apiErr.Status)
		}
	})
}

func TestContinueGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "GNAP continue-token" {
			t.Errorf("expected GNAP authorization, got %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["interact_ref"] != "ref-abc" {
			t.Errorf("expected interact_ref ref-abc, got %q", body["interact_ref"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": map[string]interface{}{"value": "finalized-token"},
		})
	}))
	defer server.Close()

	token, err := newTestClient(0).ContinueGrant(context.Background(), server.URL, "continue-token", "ref-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "finalized-token" {
		t.Fatalf("expected finalized token, got %q", token)
	}
}

func TestCreateQuote_MapsDebitAmount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quotes" {
			t.Errorf("expected /quotes path, got %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "https://resource.example/quotes/q-1",
			"debitAmount": map[string]interface{}{"value": "10000", "assetCode": "ZAR", "assetScale": 2},
		})
	}))
	defer server.Close()

	quote, err := newTestClient(0).CreateQuote(context.Background(), server.URL, "token", "https://wallet.example/customer", "https://resource.example/incoming-payments/rcv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.DebitAmount.Value != "10000" {
		t.Fatalf("expected debit amount mapped, got %+v", quote.DebitAmount)
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		base    string
		segment string
		want    string
	}{
		{"https://resource.example", "quotes", "https://resource.example/quotes"},
		{"https://resource.example/", "quotes", "https://resource.example/quotes"},
		{"https://resource.example/op", "incoming-payments", "https://resource.example/op/incoming-payments"},
	}
	for _, tc := range tests {
		if got := joinPath(tc.base, tc.segment); got != tc.want {
			t.Errorf("joinPath(%q, %q) = %q, want %q", tc.base, tc.segment, got, tc.want)
		}
	}
}
