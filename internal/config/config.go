package config

import (
	"fmt"
	"os"

	"einvoice-bridge/internal/logger"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Local tracking store
	DatabaseURL string

	// Sage 50 source (ODBC connection string or DSN=... reference)
	SageConn string

	// FIRS e-invoicing endpoint
	APIBaseURL    string
	ParticipantID string
	APIKey        string

	// Supplier identity printed on receipts and sent in payloads
	SupplierName    string
	SupplierTIN     string
	SupplierAddress string
	SupplierCity    string
	SupplierCountry string

	// Fallbacks for customers with incomplete master data
	DefaultTIN        string
	DefaultEmail      string
	DefaultPhone      string
	DefaultCity       string
	DefaultPostalZone string

	// Tax and currency
	VATRatePercent decimal.Decimal
	Currency       string

	// Dashboard
	ServerPort     string
	AllowedOrigins string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	rate, err := decimal.NewFromString(getEnv("EINVOICE_VAT_RATE", "7.5"))
	if err != nil {
		return nil, fmt.Errorf("EINVOICE_VAT_RATE is not a number: %w", err)
	}

	config := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SageConn:          getEnv("SAGE_ODBC_CONN", ""),
		APIBaseURL:        getEnv("FIRS_API_URL", ""),
		ParticipantID:     getEnv("FIRS_PARTICIPANT_ID", ""),
		APIKey:            getEnv("FIRS_API_KEY", ""),
		SupplierName:      getEnv("SUPPLIER_NAME", ""),
		SupplierTIN:       getEnv("SUPPLIER_TIN", ""),
		SupplierAddress:   getEnv("SUPPLIER_ADDRESS", "N/A"),
		SupplierCity:      getEnv("SUPPLIER_CITY", "Lagos"),
		SupplierCountry:   getEnv("SUPPLIER_COUNTRY", "NG"),
		DefaultTIN:        getEnv("EINVOICE_DEFAULT_TIN", "23773131-0001"),
		DefaultEmail:      getEnv("EINVOICE_DEFAULT_EMAIL", "noemail@placeholder.com"),
		DefaultPhone:      getEnv("EINVOICE_DEFAULT_PHONE", "+234"),
		DefaultCity:       getEnv("EINVOICE_DEFAULT_CITY", "Lagos"),
		DefaultPostalZone: getEnv("EINVOICE_DEFAULT_POSTAL_ZONE", "100001"),
		VATRatePercent:    rate,
		Currency:          getEnv("EINVOICE_CURRENCY", "NGN"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:     getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:         getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("FIRS_API_URL is required")
	}
	if c.ParticipantID == "" {
		return fmt.Errorf("FIRS_PARTICIPANT_ID is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("FIRS_API_KEY is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
