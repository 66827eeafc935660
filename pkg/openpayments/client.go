/**
 * @description
 * This package provides a client for the Open Payments network. It
 * encapsulates wallet-endpoint resolution, grant negotiation against the
 * authorization server (including interactive consent), and resource-server
 * operations: quotes, incoming payments and outgoing payments.
 *
 * Key features:
 * - Wallet resolution runs against the public wallet address URL with a short,
 *   configurable timeout since it gates every other operation.
 * - Grant requests return either a usable access token or an interaction
 *   descriptor, never both; callers branch on which field is set.
 * - Upstream errors surface as *APIError with enough detail for caller-driven
 *   retry decisions; timeouts are classified separately as ErrTimeout.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net, net/http, time: Standard Go libraries.
 * - internal/domain: Shared wire types for amounts, wallets and payments.
 *
 * @notes
 * - Request signing (HTTP message signatures) is out of scope; authenticated
 *   calls carry the GNAP access token in the Authorization header only.
 */

package openpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/direla/payment-service/internal/domain"
)

// ErrTimeout marks transport timeouts against the payment network. Callers
// may retry; the orchestrator itself never does.
var ErrTimeout = errors.New("payment network timeout")

// PaymentMetadata is the descriptive tag attached to payments.
type PaymentMetadata struct {
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
}

// API is the capability surface the orchestrator consumes. It exists so the
// application layer can be tested against a recording fake.
type API interface {
	ResolveWallet(ctx context.Context, walletURL string) (*domain.WalletEndpoint, error)
	RequestGrant(ctx context.Context, authServer string, access []domain.GrantAccess, interact *domain.GrantInteract) (*domain.GrantResult, error)
	ContinueGrant(ctx context.Context, continueURI, continueToken, interactRef string) (string, error)
	GetQuote(ctx context.Context, quoteURL, accessToken string) (*domain.Quote, error)
	CreateQuote(ctx context.Context, resourceServer, accessToken, walletID, receiver string) (*domain.Quote, error)
	CreateIncomingPayment(ctx context.Context, resourceServer, accessToken, walletID string, amount domain.Amount, metadata PaymentMetadata) (*domain.Receivable, error)
	CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken, walletID, quoteID string, metadata PaymentMetadata) (*domain.OutgoingPayment, error)
}

// Client is an HTTP client for the Open Payments network.
type Client struct {
	KeyID         string
	ClientWallet  string
	ClientName    string
	HTTPClient    *http.Client
	ResolveClient *http.Client
}

// NewClient creates a network client. resolveTimeout bounds wallet-endpoint
// resolution; all other calls use a 30-second bound.
func NewClient(keyID, clientWallet string, resolveTimeout time.Duration) *Client {
	if resolveTimeout <= 0 {
		resolveTimeout = 10 * time.Second
	}
	return &Client{
		KeyID:        keyID,
		ClientWallet: clientWallet,
		ClientName:   "Direla Mobile App",
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		ResolveClient: &http.Client{
			Timeout: resolveTimeout,
		},
	}
}

// APIError represents a structured error from the payment network.
type APIError struct {
	Status int    `json:"status"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("open payments error (status %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("open payments error (status %d)", e.Status)
}

// grantRequestBody is the GNAP grant-request payload.
type grantRequestBody struct {
	AccessToken struct {
		Access []domain.GrantAccess `json:"access"`
	} `json:"access_token"`
	Interact *struct {
		Start  []string `json:"start"`
		Finish struct {
			Method string `json:"method"`
			URI    string `json:"uri"`
			Nonce  string `json:"nonce"`
		} `json:"finish"`
	} `json:"interact,omitempty"`
	Client struct {
		Name string `json:"name"`
		URI  string `json:"uri"`
	} `json:"client"`
}

// grantResponseBody covers both grant outcomes: a direct access token, or an
// interaction redirect plus continuation handle.
type grantResponseBody struct {
	AccessToken struct {
		Value string `json:"value"`
	} `json:"access_token"`
	Interact struct {
		Redirect string `json:"redirect"`
	} `json:"interact"`
	Continue struct {
		AccessToken struct {
			Value string `json:"value"`
		} `json:"access_token"`
		URI string `json:"uri"`
	} `json:"continue"`
}

// walletBody mirrors the wallet-address metadata document, whose display-name
// field differs from our API's.
type walletBody struct {
	ID             string `json:"id"`
	PublicName     string `json:"publicName"`
	AssetCode      string `json:"assetCode"`
	AssetScale     int    `json:"assetScale"`
	AuthServer     string `json:"authServer"`
	ResourceServer string `json:"resourceServer"`
}

func (b walletBody) toDomain(walletURL string) *domain.WalletEndpoint {
	wallet := &domain.WalletEndpoint{
		ID:             b.ID,
		PublicName:     b.PublicName,
		AssetCode:      b.AssetCode,
		AssetScale:     b.AssetScale,
		AuthServer:     b.AuthServer,
		ResourceServer: b.ResourceServer,
	}
	if wallet.ID == "" {
		wallet.ID = walletURL
	}
	if wallet.PublicName == "" {
		wallet.PublicName = "Wallet"
	}
	return wallet
}

// ResolveWallet fetches the public metadata of a wallet endpoint.
func (c *Client) ResolveWallet(ctx context.Context, walletURL string) (*domain.WalletEndpoint, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", walletURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var body walletBody
	if err := c.do(c.ResolveClient, req, "resolve_wallet", &body); err != nil {
		return nil, err
	}
	return body.toDomain(walletURL), nil
}

// RequestGrant asks the authorization server for the given access. When the
// server requires explicit user consent, the result carries an interaction
// descriptor instead of an access token.
func (c *Client) RequestGrant(ctx context.Context, authServer string, access []domain.GrantAccess, interact *domain.GrantInteract) (*domain.GrantResult, error) {
	payload := grantRequestBody{}
	payload.AccessToken.Access = access
	payload.Client.Name = c.ClientName
	payload.Client.URI = c.ClientWallet
	if interact != nil {
		payload.Interact = &struct {
			Start  []string `json:"start"`
			Finish struct {
				Method string `json:"method"`
				URI    string `json:"uri"`
				Nonce  string `json:"nonce"`
			} `json:"finish"`
		}{Start: []string{"redirect"}}
		payload.Interact.Finish.Method = "redirect"
		payload.Interact.Finish.URI = interact.FinishURI
		payload.Interact.Finish.Nonce = interact.Nonce
	}

	req, err := c.newJSONRequest(ctx, "POST", authServer, "", payload)
	if err != nil {
		return nil, err
	}

	var resp grantResponseBody
	if err := c.do(c.HTTPClient, req, "request_grant", &resp); err != nil {
		return nil, err
	}

	if resp.Interact.Redirect != "" {
		result := &domain.GrantResult{
			Interact: &domain.InteractionDescriptor{
				RedirectURL:   resp.Interact.Redirect,
				ContinueToken: resp.Continue.AccessToken.Value,
				ContinueURI:   resp.Continue.URI,
			},
		}
		return result, nil
	}
	if resp.AccessToken.Value == "" {
		return nil, &APIError{Status: http.StatusBadGateway, Detail: "grant response carried neither token nor interaction"}
	}
	return &domain.GrantResult{AccessToken: resp.AccessToken.Value}, nil
}

// ContinueGrant finalizes an interactive grant using the continuation handle
// and the interaction reference from the consent callback, returning the
// finalized access token.
func (c *Client) ContinueGrant(ctx context.Context, continueURI, continueToken, interactRef string) (string, error) {
	body := map[string]string{"interact_ref": interactRef}
	req, err := c.newJSONRequest(ctx, "POST", continueURI, continueToken, body)
	if err != nil {
		return "", err
	}

	var resp grantResponseBody
	if err := c.do(c.HTTPClient, req, "continue_grant", &resp); err != nil {
		return "", err
	}
	if resp.AccessToken.Value == "" {
		return "", &APIError{Status: http.StatusBadGateway, Detail: "continued grant carried no access token"}
	}
	return resp.AccessToken.Value, nil
}

// GetQuote fetches an existing quote by its canonical URL.
func (c *Client) GetQuote(ctx context.Context, quoteURL, accessToken string) (*domain.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", quoteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	setAuthorization(req, accessToken)

	var quote quoteBody
	if err := c.do(c.HTTPClient, req, "get_quote", &quote); err != nil {
		return nil, err
	}
	return quote.toDomain(), nil
}

// CreateQuote prices a payment from the sender wallet to the receiver
// (an incoming-payment URL) on the sender's resource server.
func (c *Client) CreateQuote(ctx context.Context, resourceServer, accessToken, walletID, receiver string) (*domain.Quote, error) {
	body := map[string]string{
		"walletAddress": walletID,
		"receiver":      receiver,
		"method":        "ilp",
	}
	req, err := c.newJSONRequest(ctx, "POST", joinPath(resourceServer, "quotes"), accessToken, body)
	if err != nil {
		return nil, err
	}

	var quote quoteBody
	if err := c.do(c.HTTPClient, req, "create_quote", &quote); err != nil {
		return nil, err
	}
	return quote.toDomain(), nil
}

// CreateIncomingPayment creates a receivable on the given wallet.
func (c *Client) CreateIncomingPayment(ctx context.Context, resourceServer, accessToken, walletID string, amount domain.Amount, metadata PaymentMetadata) (*domain.Receivable, error) {
	body := struct {
		WalletAddress  string          `json:"walletAddress"`
		IncomingAmount domain.Amount   `json:"incomingAmount"`
		Metadata       PaymentMetadata `json:"metadata"`
	}{
		WalletAddress:  walletID,
		IncomingAmount: amount,
		Metadata:       metadata,
	}
	req, err := c.newJSONRequest(ctx, "POST", joinPath(resourceServer, "incoming-payments"), accessToken, body)
	if err != nil {
		return nil, err
	}

	var receivable domain.Receivable
	if err := c.do(c.HTTPClient, req, "create_incoming_payment", &receivable); err != nil {
		return nil, err
	}
	return &receivable, nil
}

// CreateOutgoingPayment executes the funds movement described by a finalized
// grant and a quote.
func (c *Client) CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken, walletID, quoteID string, metadata PaymentMetadata) (*domain.OutgoingPayment, error) {
	body := struct {
		WalletAddress string          `json:"walletAddress"`
		QuoteID       string          `json:"quoteId"`
		Metadata      PaymentMetadata `json:"metadata"`
	}{
		WalletAddress: walletID,
		QuoteID:       quoteID,
		Metadata:      metadata,
	}
	req, err := c.newJSONRequest(ctx, "POST", joinPath(resourceServer, "outgoing-payments"), accessToken, body)
	if err != nil {
		return nil, err
	}

	var payment domain.OutgoingPayment
	if err := c.do(c.HTTPClient, req, "create_outgoing_payment", &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// quoteBody mirrors the resource-server quote representation, whose debit
// amount field name differs from our API's.
type quoteBody struct {
	ID            string        `json:"id"`
	WalletAddress string        `json:"walletAddress"`
	Receiver      string        `json:"receiver"`
	DebitAmount   domain.Amount `json:"debitAmount"`
	ReceiveAmount domain.Amount `json:"receiveAmount"`
	CreatedAt     time.Time     `json:"createdAt"`
	ExpiresAt     time.Time     `json:"expiresAt"`
}

func (q quoteBody) toDomain() *domain.Quote {
	return &domain.Quote{
		ID:            q.ID,
		WalletAddress: q.WalletAddress,
		Receiver:      q.Receiver,
		DebitAmount:   q.DebitAmount,
		ReceiveAmount: q.ReceiveAmount,
		CreatedAt:     q.CreatedAt,
		ExpiresAt:     q.ExpiresAt,
	}
}

func (c *Client) newJSONRequest(ctx context.Context, method, requestURL, accessToken string, payload interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	setAuthorization(req, accessToken)
	return req, nil
}

// do executes the request, decodes into out on 2xx, and converts everything
// else into *APIError or ErrTimeout.
func (c *Client) do(client *http.Client, req *http.Request, op string, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			log.Printf("level=warn component=openpayments_client op=%s msg=\"request timed out\" url=%s", op, req.URL)
			return fmt.Errorf("%s: %w", op, ErrTimeout)
		}
		return fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, apiErr); err != nil || apiErr.Detail == "" {
			apiErr.Detail = string(bytes.TrimSpace(bodyBytes))
		}
		log.Printf("level=warn component=openpayments_client op=%s status=%d detail=%q", op, resp.StatusCode, apiErr.Detail)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func setAuthorization(req *http.Request, accessToken string) {
	if accessToken != "" {
		req.Header.Set("Authorization", "GNAP "+accessToken)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

func joinPath(base, segment string) string {
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + segment
	}
	return u.JoinPath(segment).String()
}
