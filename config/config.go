// Package config provides configuration management for the PayGate payment service.
// Configuration can be loaded from YAML files and overridden by environment variables.
package config

import (
	"fmt"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the PayGate payment service.
// Values can be set via YAML configuration file or environment variables.
// Environment variables take precedence over YAML values.
type Config struct {
	IsDebug    bool  `yaml:"is_debug" env:"DEBUG" env-default:"false"`
	LogRecords int64 `yaml:"log_records" env:"LOG_RECORDS" env-default:"0"`
	Listen     struct {
		BindIP   string `yaml:"bind_ip" env:"BIND_IP" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env:"PORT" env-default:"5200"`
		TLS      bool   `yaml:"tls_enabled" env:"TLS_ENABLED" env-default:"false"`
		CertFile string `yaml:"cert_file" env:"TLS_CERT_FILE" env-default:""`
		KeyFile  string `yaml:"key_file" env:"TLS_KEY_FILE" env-default:""`
	} `yaml:"listen"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"false"`
		Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
		User     string `yaml:"user" env:"MONGO_USER" env-default:"admin"`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:"pass"`
		Database string `yaml:"database" env:"MONGO_DATABASE" env-default:""`
	} `yaml:"mongo"`
	PayGate struct {
		AccessToken  string `yaml:"access_token" env:"PAYGATE_ACCESS_TOKEN" env-default:""`
		MerchantCode string `yaml:"merchant_code" env:"PAYGATE_MERCHANT_CODE" env-default:""`
		// Title shown on the payment method selection page; empty hides the label
		Title string `yaml:"title" env:"PAYGATE_TITLE" env-default:""`

		CheckoutURL        string `yaml:"api_checkout_url" env:"PAYGATE_CHECKOUT_URL" env-default:"https://lab.optimistic.blue/paygateWS/api/CheckOut"`
		CheckoutTimeoutSec int    `yaml:"api_checkout_req_timeout_sec" env:"PAYGATE_CHECKOUT_TIMEOUT" env-default:"10"`

		SearchTransactionsURL        string `yaml:"api_back_search_transactions" env:"PAYGATE_SEARCH_URL" env-default:"https://lab.optimistic.blue/paygateWS/api/BackOfficeSearchTransactions"`
		SearchTransactionsTimeoutSec int    `yaml:"api_back_search_transactions_timeout_seconds" env:"PAYGATE_SEARCH_TIMEOUT" env-default:"10"`

		// MarkTestPaymentAsPaidURL is only available on non-production PayGate instances
		MarkTestPaymentAsPaidURL        string `yaml:"mark_test_payment_as_paid_url" env:"PAYGATE_MARK_PAID_URL" env-default:"https://lab.optimistic.blue/paygateWS/api/MarkTestPaymentAsPaid"`
		MarkTestPaymentAsPaidTimeoutSec int    `yaml:"mark_test_payment_as_paid_req_timeout_sec" env:"PAYGATE_MARK_PAID_TIMEOUT" env-default:"10"`

		BasicAuthUser string `yaml:"api_basic_auth_user" env:"PAYGATE_BASIC_AUTH_USER" env-default:""`
		BasicAuthPass string `yaml:"api_basic_auth_pass" env:"PAYGATE_BASIC_AUTH_PASS" env-default:""`

		// EcommerceURL is the public base URL used to build the callback URLs
		// sent to PayGate with every checkout request.
		EcommerceURL string `yaml:"ecommerce_url" env:"PAYGATE_ECOMMERCE_URL" env-default:"http://localhost:5200"`

		CancelCheckoutPath string `yaml:"cancel_checkout_path" env:"PAYGATE_CANCEL_PATH" env-default:"/checkout/cancel-checkout/"`
		ErrorPath          string `yaml:"error_path" env:"PAYGATE_ERROR_PATH" env-default:"/checkout/error/"`
		ReceiptPagePath    string `yaml:"receipt_page_path" env:"PAYGATE_RECEIPT_PATH" env-default:"/checkout/receipt/"`

		PaymentTypes []string `yaml:"payment_types" env:"PAYGATE_PAYMENT_TYPES" env-default:"VISA,MASTERCARD,AMEX,PAYPAL,MBWAY,REFMB,DUC"`

		// CallbackServerAllowedNetworks restricts the server-to-server callback
		// endpoint to the listed networks in CIDR notation; empty allows any client.
		CallbackServerAllowedNetworks []string `yaml:"callback_server_allowed_networks" env:"PAYGATE_CALLBACK_NETWORKS" env-default:""`
	} `yaml:"paygate"`
}

// ConfigurationError marks a missing or invalid setting. The service never
// starts without valid merchant credentials.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s is required", e.Setting)
}

var instance *Config
var once sync.Once

// GetConfig loads configuration from the specified YAML file path.
// Configuration values can be overridden by environment variables.
// This function uses a singleton pattern and only loads the config once.
func GetConfig(path string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("load config: %w; %s", err, desc)
			instance = nil
			return
		}
		if err = instance.Validate(); err != nil {
			instance = nil
		}
	})
	return instance, err
}

// Validate checks that the merchant credentials required for every call to the
// PayGate API are present. A service started without them could never complete
// a checkout, so a miss is fatal at boot.
func (c *Config) Validate() error {
	if c.PayGate.AccessToken == "" {
		return &ConfigurationError{Setting: "access_token"}
	}
	if c.PayGate.MerchantCode == "" {
		return &ConfigurationError{Setting: "merchant_code"}
	}
	if c.PayGate.BasicAuthUser == "" || c.PayGate.BasicAuthPass == "" {
		return &ConfigurationError{Setting: "api_basic_auth_user and api_basic_auth_pass"}
	}
	return nil
}
