/**
 * @description
 * This file contains the HTTP handlers for the payment-service's API
 * endpoints. Handlers parse incoming requests, call the orchestrator, and
 * translate its structured errors into HTTP status codes: validation and
 * not-found failures map to 4xx, upstream network failures to 5xx, and the
 * interaction-required outcome is a normal 200 control-flow response carrying
 * the consent redirect.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models, and
 *   sentinel errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/direla/payment-service/internal/app"
	"github.com/direla/payment-service/internal/domain"
	"github.com/direla/payment-service/internal/store"
	"github.com/direla/payment-service/pkg/openpayments"
	"github.com/go-chi/chi/v5"
)

// PaymentHandlers holds the application service that handlers will use.
type PaymentHandlers struct {
	service    *app.Service
	baseURL    string
	serverPort string
}

// NewPaymentHandlers creates a new instance of PaymentHandlers.
func NewPaymentHandlers(service *app.Service, baseURL, serverPort string) *PaymentHandlers {
	return &PaymentHandlers{service: service, baseURL: baseURL, serverPort: serverPort}
}

// qrPayload is the JSON document encoded into payment QR codes.
type qrPayload struct {
	Type          string  `json:"type"`
	PaymentID     string  `json:"paymentId"`
	WalletAddress string  `json:"walletAddress"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Description   string  `json:"description"`
	Timestamp     string  `json:"timestamp"`
}

// HealthHandler reports service status and the configured wallet endpoints.
func (h *PaymentHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "Direla Backend",
		"customerWallet": h.service.ClientWallet(),
		"merchantWallet": h.service.MerchantWallet(),
		"mode":           "REAL_PAYMENTS",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// ServerInfoHandler exposes the base URL and endpoint catalog so mobile
// clients can discover the backend dynamically.
func (h *PaymentHandlers) ServerInfoHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"server": map[string]interface{}{
			"baseUrl":        h.baseURL,
			"port":           h.serverPort,
			"status":         "online",
			"mode":           "REAL_PAYMENTS",
			"customerWallet": h.service.ClientWallet(),
			"merchantWallet": h.service.MerchantWallet(),
			"endpoints": map[string]interface{}{
				"health": "/health",
				"wallet": "/api/wallet/{address}",
				"payment": map[string]string{
					"incoming": "/api/payment/incoming",
					"quote":    "/api/payment/quote",
					"send":     "/api/payment/send",
					"complete": "/api/payment/complete",
					"qr":       "/api/qr/generate",
				},
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// WalletHandler resolves and returns wallet endpoint metadata.
func (h *PaymentHandlers) WalletHandler(w http.ResponseWriter, r *http.Request) {
	address, err := url.PathUnescape(chi.URLParam(r, "address"))
	if err != nil || strings.TrimSpace(address) == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid wallet address", "")
		return
	}

	wallet, err := h.service.ResolveWallet(r.Context(), address)
	if err != nil {
		log.Printf("level=warn component=api endpoint=wallet outcome=failed address=%s err=%v", address, err)
		h.writeServiceError(w, err, "Wallet not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"wallet":  wallet,
	})
}

// IncomingPaymentHandler creates a receivable on the merchant wallet.
func (h *PaymentHandlers) IncomingPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ReceivableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.CreateReceivable(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=payment_incoming outcome=failed err=%v", err)
		h.writeServiceError(w, err, "Failed to create payment request")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"payment": result.Receivable,
	})
}

// GenerateQRHandler creates a receivable and wraps it in a QR payload.
func (h *PaymentHandlers) GenerateQRHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ReceivableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.CreateReceivable(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=qr_generate outcome=failed err=%v", err)
		h.writeServiceError(w, err, "Failed to generate QR code")
		return
	}

	payload := qrPayload{
		Type:          "open-payments",
		PaymentID:     result.Receivable.ID,
		WalletAddress: h.service.MerchantWallet(),
		Amount:        result.Amount,
		Currency:      result.Currency,
		Description:   req.Description,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	qrData, err := json.Marshal(payload)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to encode QR payload", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"qrData":  string(qrData),
		"payment": result.Receivable,
		"displayInfo": map[string]string{
			"merchantName": "Direla Merchant",
			"amount":       fmt.Sprintf("%s %v", result.Currency, result.Amount),
			"description":  req.Description,
		},
	})
}

// QuoteHandler creates a payment quote to a payee wallet.
func (h *PaymentHandlers) QuoteHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.CreateQuote(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=payment_quote outcome=failed wallet=%s err=%v", req.WalletAddress, err)
		h.writeServiceError(w, err, "Failed to create payment quote")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"quote":             result.Quote,
		"incomingPaymentId": result.IncomingPaymentID,
	})
}

// SendHandler initiates a payment for an existing quote. When the network
// requires user consent it responds with the interaction descriptor and
// requiresAuth=true instead of an executed payment.
func (h *PaymentHandlers) SendHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.SendPayment(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=payment_send outcome=failed quote_id=%s err=%v", req.QuoteID, err)
		h.writeServiceError(w, err, "Failed to send payment")
		return
	}

	if result.Interaction != nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":       false,
			"requiresAuth":  true,
			"authUrl":       result.Interaction.RedirectURL,
			"continueToken": result.Interaction.ContinueToken,
			"continueUri":   result.Interaction.ContinueURI,
			"nonce":         result.Interaction.Nonce,
			"message":       "Payment requires user authorization. Please visit the authorization URL.",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"outgoingPayment":   result.Payment,
		"incomingPaymentId": req.IncomingPaymentID,
	})
}

// CompleteHandler finalizes a payment after user consent.
func (h *PaymentHandlers) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	payment, err := h.service.CompletePayment(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=payment_complete outcome=failed quote_id=%s err=%v", req.QuoteID, err)
		if errors.Is(err, store.ErrAuthorizationNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"success":   false,
				"error":     "No completed authorization found. Please authorize the payment first.",
				"needsAuth": true,
			})
			return
		}
		h.writeServiceError(w, err, "Failed to complete payment")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"outgoingPayment": payment,
	})
}

// callbackPage renders the human-readable confirmation shown in the browser
// after the consent flow redirects back.
var callbackPage = template.Must(template.New("callback").Parse(`<html>
  <head><title>Payment Authorization</title></head>
  <body style="font-family: Arial, sans-serif; text-align: center; padding: 50px;">
    <h1>Payment Authorization Complete</h1>
    <p>Your payment has been authorized successfully.</p>
    <div style="background: #f0f9ff; padding: 20px; border-radius: 8px; margin: 20px 0;">
      <h3>Payment Details:</h3>
      <p><strong>Amount:</strong> {{.Currency}} {{.Amount}}</p>
      <p><strong>Authorization ID:</strong> {{.InteractRef}}</p>
      <p><strong>Quote ID:</strong> {{.QuoteID}}</p>
    </div>
    <hr>
    <p><strong>Return to your mobile app - payment will complete automatically.</strong></p>
    <p><em>You can close this window now.</em></p>
  </body>
</html>`))

// AuthorizationCallbackHandler receives the out-of-band consent redirect,
// stores the pending authorization, and responds with a confirmation page.
func (h *PaymentHandlers) AuthorizationCallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	record := domain.PendingAuthorization{
		InteractRef: query.Get("interact_ref"),
		Hash:        query.Get("hash"),
		QuoteID:     query.Get("quoteId"),
		Amount:      query.Get("amount"),
		Currency:    query.Get("currency"),
	}

	if err := h.service.ReceiveAuthorizationCallback(r.Context(), record); err != nil {
		log.Printf("level=warn component=api endpoint=authorization_callback outcome=reject err=%v", err)
		http.Error(w, "Missing interaction reference", http.StatusBadRequest)
		return
	}

	currency := record.Currency
	if currency == "" {
		currency = "ZAR"
	}
	quoteLabel := record.QuoteID
	if idx := strings.LastIndex(quoteLabel, "/"); idx >= 0 {
		quoteLabel = quoteLabel[idx+1:]
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := callbackPage.Execute(w, map[string]string{
		"Currency":    currency,
		"Amount":      record.Amount,
		"InteractRef": record.InteractRef,
		"QuoteID":     quoteLabel,
	}); err != nil {
		log.Printf("level=error component=api endpoint=authorization_callback msg=\"template render failed\" err=%v", err)
	}
}

// writeServiceError maps orchestrator errors onto HTTP status codes.
func (h *PaymentHandlers) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrMissingWalletAddress),
		errors.Is(err, app.ErrMissingQuoteID),
		errors.Is(err, app.ErrMissingAuthParameters),
		errors.Is(err, app.ErrMissingInteractionRef),
		errors.Is(err, app.ErrQuoteExpired):
		h.writeError(w, http.StatusBadRequest, fallback, err.Error())
	case errors.Is(err, app.ErrQuoteNotFound),
		errors.Is(err, app.ErrWalletNotFound),
		errors.Is(err, store.ErrAuthorizationNotFound):
		h.writeError(w, http.StatusNotFound, fallback, err.Error())
	case errors.Is(err, openpayments.ErrTimeout):
		h.writeError(w, http.StatusGatewayTimeout, fallback, err.Error())
	default:
		h.writeError(w, http.StatusBadGateway, fallback, err.Error())
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, errLabel, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   errLabel,
		"message": message,
	})
}
