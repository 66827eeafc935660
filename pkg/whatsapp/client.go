/**
 * @description
 * This package provides a client for the WhatsApp messaging microservice,
 * which delivers human-readable messages to phone-number-addressable
 * channels. The orchestrator treats it purely as a notification sink: calls
 * are fire-and-forget and delivery is never awaited on by the payment flow.
 */
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Notifier is the notification-sink capability consumed by the orchestrator.
// Implementations must never fail a payment: errors are logged and dropped.
type Notifier interface {
	NotifyMessage(ctx context.Context, phoneNumber, message string)
	NotifyPaymentComplete(ctx context.Context, phoneNumber, amount, currency string)
}

// Client is a client for the WhatsApp integration service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new WhatsApp service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyMessage delivers a free-form message to the given phone number.
func (c *Client) NotifyMessage(ctx context.Context, phoneNumber, message string) {
	c.post(ctx, "/send", map[string]string{
		"to":      phoneNumber,
		"message": message,
	})
}

// NotifyPaymentComplete tells the merchant a payment has settled.
func (c *Client) NotifyPaymentComplete(ctx context.Context, phoneNumber, amount, currency string) {
	c.post(ctx, "/payment-complete", map[string]string{
		"phoneNumber": phoneNumber,
		"amount":      amount,
		"currency":    currency,
	})
}

// post fires the request and logs failures without surfacing them; the sink
// offers no delivery guarantee the core could consume.
func (c *Client) post(ctx context.Context, path string, payload map[string]string) {
	if c.baseURL == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("level=warn component=whatsapp_client path=%s msg=\"marshal failed\" err=%v", path, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s%s", c.baseURL, path), bytes.NewBuffer(body))
	if err != nil {
		log.Printf("level=warn component=whatsapp_client path=%s msg=\"request build failed\" err=%v", path, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("level=warn component=whatsapp_client path=%s msg=\"notification dropped\" err=%v", path, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("level=warn component=whatsapp_client path=%s status=%d msg=\"notification rejected\"", path, resp.StatusCode)
	}
}

// Nop is a Notifier that records nothing and sends nothing, used when no
// WhatsApp service is configured.
type Nop struct{}

func (Nop) NotifyMessage(ctx context.Context, phoneNumber, message string) {}

func (Nop) NotifyPaymentComplete(ctx context.Context, phoneNumber, amount, currency string) {}
