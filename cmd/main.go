/**
 * @description
 * This is the main entry point for the payment-service. It is responsible for
 * initializing all components of the service: configuration, the Open
 * Payments network client, the pending-authorization store, the WhatsApp
 * notification client, the RabbitMQ event producer, the core application
 * service, and the HTTP server. It wires everything together and starts the
 * service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages.
 * - pkg/openpayments, pkg/whatsapp, pkg/rabbitmq: External-collaborator clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/direla/payment-service/internal/api"
	"github.com/direla/payment-service/internal/app"
	"github.com/direla/payment-service/internal/config"
	"github.com/direla/payment-service/internal/store"
	"github.com/direla/payment-service/pkg/openpayments"
	"github.com/direla/payment-service/pkg/rabbitmq"
	"github.com/direla/payment-service/pkg/whatsapp"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment variables\"")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting payment-service\" port=%s customer_wallet=%s merchant_wallet=%s",
		cfg.ServerPort, cfg.ClientWalletAddress, cfg.MerchantWalletAddress)

	// The private key backs request signing on a real deployment; here we only
	// verify it is present so misconfiguration fails at startup, not mid-payment.
	if cfg.PrivateKeyPath != "" {
		if _, err := os.Stat(cfg.PrivateKeyPath); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"private key file not found\" path=%s err=%v", cfg.PrivateKeyPath, err)
		}
		log.Printf("level=info component=bootstrap msg=\"private key loaded\" path=%s key_id=%s", cfg.PrivateKeyPath, cfg.KeyID)
	}

	// Initialize the Open Payments network client.
	networkClient := openpayments.NewClient(cfg.KeyID, cfg.ClientWalletAddress, cfg.WalletResolveTimeout())

	// Initialize the pending-authorization store with its TTL sweep.
	pendingStore := store.NewPendingStore(cfg.PendingAuthTTL())
	defer pendingStore.Close()

	// Initialize the RabbitMQ producer to publish payment lifecycle events.
	// Broker unavailability degrades to a no-op fallback.
	var eventProducer rabbitmq.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; events disabled\" env=RABBITMQ_URL")
		eventProducer = &rabbitmq.EventProducerFallback{}
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		eventProducer = &rabbitmq.EventProducerFallback{}
	} else {
		eventProducer = producer
	}
	defer eventProducer.Close()

	// Initialize the WhatsApp notification client. Missing configuration
	// disables notifications but never blocks payments.
	var notifier whatsapp.Notifier
	if strings.TrimSpace(cfg.WhatsAppServiceURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"whatsapp service not configured; notifications disabled\" env=WHATSAPP_SERVICE_URL")
		notifier = whatsapp.Nop{}
	} else {
		notifier = whatsapp.NewClient(cfg.WhatsAppServiceURL)
	}

	// Initialize the core application service with its dependencies.
	paymentService := app.NewService(
		networkClient,
		pendingStore,
		eventProducer,
		notifier,
		cfg.ClientWalletAddress,
		cfg.MerchantWalletAddress,
		cfg.MerchantPhoneNumber,
		cfg.CallbackBaseURL,
		cfg.PaymentEventExchange,
	)

	// Initialize the API handlers and router.
	paymentHandlers := api.NewPaymentHandlers(paymentService, cfg.CallbackBaseURL, cfg.ServerPort)
	router := api.PaymentRoutes(paymentHandlers)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s callback_base=%s", serverAddr, cfg.CallbackBaseURL)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
