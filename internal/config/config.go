package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ImadMoka/Maily-app-v1-sub001/pkg/types"
)

// Config holds the application configuration
type Config struct {
	// Store settings
	StorePath string
	LogLevel  string

	// Sync settings
	SyncMaxMessages int
	SyncInterval    time.Duration
	SessionTTL      time.Duration
	MaxRetries      int

	// Accounts
	Accounts []AccountConfig
}

// AccountConfig holds configuration for a single mailbox account
type AccountConfig struct {
	Name   string
	UserID string

	// IMAP settings
	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	IMAPUseTLS   bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		StorePath:       getEnv("STORE_PATH", "/data/maily_sync.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		SyncMaxMessages: getEnvInt("SYNC_MAX_MESSAGES", 50),
		SyncInterval:    time.Duration(getEnvInt("SYNC_INTERVAL_SECONDS", 300)) * time.Second,
		SessionTTL:      time.Duration(getEnvInt("SESSION_TTL_SECONDS", 300)) * time.Second,
		MaxRetries:      getEnvInt("SYNC_MAX_RETRIES", 3),
	}

	// Load accounts
	accounts, err := loadAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("no mailbox accounts configured")
	}

	cfg.Accounts = accounts
	return cfg, nil
}

// loadAccounts loads mailbox account configurations from environment variables
func loadAccounts() ([]AccountConfig, error) {
	var accounts []AccountConfig

	// First, try single account configuration (for backward compatibility)
	if getEnv("IMAP_HOST", "") != "" {
		account, err := loadSingleAccount()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
		return accounts, nil
	}

	// Load multiple accounts (ACCOUNT_1_*, ACCOUNT_2_*, etc.)
	accountNum := 1
	for {
		account, err := loadAccountByNumber(accountNum)
		if err != nil {
			break // No more accounts
		}
		accounts = append(accounts, *account)
		accountNum++
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts found in environment variables")
	}

	return accounts, nil
}

// loadSingleAccount loads a single account from environment variables
func loadSingleAccount() (*AccountConfig, error) {
	imapHost := getEnv("IMAP_HOST", "")
	imapPort := getEnvInt("IMAP_PORT", 993)
	imapUsername := getEnv("IMAP_USERNAME", "")
	imapPassword := getEnv("IMAP_PASSWORD", "")
	imapUseTLS := getEnvBool("IMAP_USE_TLS", true)

	if imapHost == "" {
		return nil, fmt.Errorf("IMAP_HOST is required")
	}

	if imapUsername == "" {
		return nil, fmt.Errorf("IMAP_USERNAME is required")
	}

	if imapPassword == "" {
		return nil, fmt.Errorf("IMAP_PASSWORD is required")
	}

	// Default account name
	name := getEnv("ACCOUNT_NAME", "default")
	if name == "" {
		name = "default"
	}

	return &AccountConfig{
		Name:         name,
		UserID:       getEnv("USER_ID", "local"),
		IMAPHost:     imapHost,
		IMAPPort:     imapPort,
		IMAPUsername: imapUsername,
		IMAPPassword: imapPassword,
		IMAPUseTLS:   imapUseTLS,
	}, nil
}

// loadAccountByNumber loads an account by number (ACCOUNT_1_*, ACCOUNT_2_*, etc.)
func loadAccountByNumber(num int) (*AccountConfig, error) {
	prefix := fmt.Sprintf("ACCOUNT_%d_", num)

	name := getEnv(prefix+"NAME", "")
	if name == "" {
		return nil, fmt.Errorf("account %d: NAME is required", num)
	}

	imapHost := getEnv(prefix+"IMAP_HOST", "")
	imapPort := getEnvInt(prefix+"IMAP_PORT", 993)
	imapUsername := getEnv(prefix+"IMAP_USERNAME", "")
	imapPassword := getEnv(prefix+"IMAP_PASSWORD", "")
	imapUseTLS := getEnvBool(prefix+"IMAP_USE_TLS", true)

	if imapHost == "" {
		return nil, fmt.Errorf("account %d: IMAP_HOST is required", num)
	}

	if imapUsername == "" {
		return nil, fmt.Errorf("account %d: IMAP_USERNAME is required", num)
	}

	if imapPassword == "" {
		return nil, fmt.Errorf("account %d: IMAP_PASSWORD is required", num)
	}

	return &AccountConfig{
		Name:         name,
		UserID:       getEnv(prefix+"USER_ID", "local"),
		IMAPHost:     imapHost,
		IMAPPort:     imapPort,
		IMAPUsername: imapUsername,
		IMAPPassword: imapPassword,
		IMAPUseTLS:   imapUseTLS,
	}, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetAccountByName finds an account by name
func (c *Config) GetAccountByName(name string) (*AccountConfig, error) {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account not found: %s", name)
}

// Credentials converts an account configuration into mailbox credentials
func (a *AccountConfig) Credentials() types.Credentials {
	return types.Credentials{
		UserID:    a.UserID,
		AccountID: a.Name,
		Host:      a.IMAPHost,
		Port:      a.IMAPPort,
		Username:  a.IMAPUsername,
		Password:  a.IMAPPassword,
		UseTLS:    a.IMAPUseTLS,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("STORE_PATH is required")
	}

	if c.SyncMaxMessages < 1 || c.SyncMaxMessages > 1000 {
		return fmt.Errorf("SYNC_MAX_MESSAGES must be between 1 and 1000")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive")
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("SYNC_MAX_RETRIES must not be negative")
	}

	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}

	// Validate each account
	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if acc.IMAPHost == "" {
			return fmt.Errorf("account %s: IMAP_HOST is required", acc.Name)
		}
		if acc.IMAPPort < 1 || acc.IMAPPort > 65535 {
			return fmt.Errorf("account %s: invalid IMAP_PORT", acc.Name)
		}
	}

	return nil
}

// AccountNames returns a list of all account names
func (c *Config) AccountNames() []string {
	names := make([]string, len(c.Accounts))
	for i := range c.Accounts {
		names[i] = c.Accounts[i].Name
	}
	return names
}
