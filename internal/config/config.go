/**
 * @description
 * This package handles the configuration management for the payment-service.
 * It uses the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payment-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	ClientWalletAddress   string `mapstructure:"OPEN_PAYMENTS_CLIENT_ADDRESS"`
	KeyID                 string `mapstructure:"OPEN_PAYMENTS_KEY_ID"`
	PrivateKeyPath        string `mapstructure:"OPEN_PAYMENTS_SECRET_KEY_PATH"`
	MerchantWalletAddress string `mapstructure:"MERCHANT_WALLET_ADDRESS"`
	CallbackBaseURL       string `mapstructure:"CALLBACK_BASE_URL"`
	BackendHost           string `mapstructure:"BACKEND_HOST"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	PaymentEventExchange  string `mapstructure:"PAYMENT_EVENT_EXCHANGE"`
	WhatsAppServiceURL    string `mapstructure:"WHATSAPP_SERVICE_URL"`
	MerchantPhoneNumber   string `mapstructure:"MERCHANT_PHONE_NUMBER"`
	PendingAuthTTLMin     int    `mapstructure:"PENDING_AUTH_TTL_MINUTES"`
	WalletResolveTimeoutS int    `mapstructure:"WALLET_RESOLVE_TIMEOUT_SECONDS"`
}

// PendingAuthTTL returns the configured pending-authorization lifetime.
func (c Config) PendingAuthTTL() time.Duration {
	return time.Duration(c.PendingAuthTTLMin) * time.Minute
}

// WalletResolveTimeout returns the bound on wallet-endpoint resolution.
func (c Config) WalletResolveTimeout() time.Duration {
	return time.Duration(c.WalletResolveTimeoutS) * time.Second
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "3001")
	viper.SetDefault("PAYMENT_EVENT_EXCHANGE", "direla.events")
	viper.SetDefault("PENDING_AUTH_TTL_MINUTES", 5)
	viper.SetDefault("WALLET_RESOLVE_TIMEOUT_SECONDS", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("OPEN_PAYMENTS_CLIENT_ADDRESS")
	_ = viper.BindEnv("OPEN_PAYMENTS_KEY_ID")
	_ = viper.BindEnv("OPEN_PAYMENTS_SECRET_KEY_PATH")
	_ = viper.BindEnv("MERCHANT_WALLET_ADDRESS")
	_ = viper.BindEnv("CALLBACK_BASE_URL")
	_ = viper.BindEnv("BACKEND_HOST")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_EVENT_EXCHANGE")
	_ = viper.BindEnv("WHATSAPP_SERVICE_URL")
	_ = viper.BindEnv("MERCHANT_PHONE_NUMBER")
	_ = viper.BindEnv("PENDING_AUTH_TTL_MINUTES")
	_ = viper.BindEnv("WALLET_RESOLVE_TIMEOUT_SECONDS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.ClientWalletAddress = strings.TrimSpace(config.ClientWalletAddress)
	if config.ClientWalletAddress == "" {
		return config, errors.New("OPEN_PAYMENTS_CLIENT_ADDRESS must be configured")
	}
	if strings.TrimSpace(config.KeyID) == "" {
		return config, errors.New("OPEN_PAYMENTS_KEY_ID must be configured")
	}

	// The merchant wallet defaults to the customer wallet so single-wallet
	// demo setups work out of the box.
	config.MerchantWalletAddress = strings.TrimSpace(config.MerchantWalletAddress)
	if config.MerchantWalletAddress == "" {
		config.MerchantWalletAddress = config.ClientWalletAddress
	}

	// A relative key path is resolved against the config directory.
	config.PrivateKeyPath = strings.TrimSpace(config.PrivateKeyPath)
	if config.PrivateKeyPath != "" && !filepath.IsAbs(config.PrivateKeyPath) {
		config.PrivateKeyPath = filepath.Join(path, config.PrivateKeyPath)
	}

	if config.CallbackBaseURL == "" {
		host := strings.TrimSpace(config.BackendHost)
		if host == "" {
			host = "localhost"
		}
		config.CallbackBaseURL = fmt.Sprintf("http://%s:%s", host, config.ServerPort)
	}
	config.CallbackBaseURL = strings.TrimRight(strings.TrimSpace(config.CallbackBaseURL), "/")

	if config.PendingAuthTTLMin <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive pending auth ttl; using default\" ttl_min=%d", config.PendingAuthTTLMin)
		config.PendingAuthTTLMin = 5
	}
	if config.WalletResolveTimeoutS <= 0 {
		config.WalletResolveTimeoutS = 10
	}

	return
}
