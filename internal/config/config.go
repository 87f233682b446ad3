package config

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	DatabasePath       string `json:"database_path"`
	APIPort            string `json:"api_port"`
	LogLevel           string `json:"log_level"`
	DataDir            string `json:"data_dir"`
	StorageDir         string `json:"storage_dir"` // attachment storage, independent of the data dir
	JWTSecret          string `json:"jwt_secret"`
	EncryptionKey      string `json:"encryption_key"` // separate key for mailbox credential encryption
	CORSOrigins        string `json:"cors_origins"`   // comma separated, * for all
	SyncIntervalMin    int    `json:"sync_interval_minutes"`
	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret"`
	OAuthRedirectBase  string `json:"oauth_redirect_base"` // external base URL for OAuth callbacks
}

// Default configuration values
const (
	DefaultDatabasePath    = "data/relay_crm.db"
	DefaultAPIPort         = "8080"
	DefaultLogLevel        = "INFO"
	DefaultDataDir         = "data"
	DefaultStorageDir      = "" // empty means DataDir/storage
	DefaultJWTSecret       = "relay-crm-default-secret-change-in-production"
	DefaultEncryptionKey   = "" // empty means derive from JWTSecret
	DefaultCORSOrigins     = "*"
	DefaultSyncIntervalMin = 5
)

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:    DefaultDatabasePath,
		APIPort:         DefaultAPIPort,
		LogLevel:        DefaultLogLevel,
		DataDir:         DefaultDataDir,
		StorageDir:      DefaultStorageDir,
		JWTSecret:       DefaultJWTSecret,
		EncryptionKey:   DefaultEncryptionKey,
		CORSOrigins:     DefaultCORSOrigins,
		SyncIntervalMin: DefaultSyncIntervalMin,
	}

	// Config file is optional.
	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json file
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		if err := json.Unmarshal(data, c); err != nil {
			return err
		}
		return nil
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("RELAY_CRM_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("RELAY_CRM_API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv("RELAY_CRM_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("RELAY_CRM_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("RELAY_CRM_STORAGE_DIR"); val != "" {
		c.StorageDir = val
	}
	if val := os.Getenv("RELAY_CRM_JWT_SECRET"); val != "" {
		c.JWTSecret = val
	}
	if val := os.Getenv("RELAY_CRM_ENCRYPTION_KEY"); val != "" {
		c.EncryptionKey = val
	}
	if val := os.Getenv("RELAY_CRM_CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
	if val := os.Getenv("RELAY_CRM_SYNC_INTERVAL_MINUTES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.SyncIntervalMin = n
		}
	}
	if val := os.Getenv("RELAY_CRM_GOOGLE_CLIENT_ID"); val != "" {
		c.GoogleClientID = val
	}
	if val := os.Getenv("RELAY_CRM_GOOGLE_CLIENT_SECRET"); val != "" {
		c.GoogleClientSecret = val
	}
	if val := os.Getenv("RELAY_CRM_OAUTH_REDIRECT_BASE"); val != "" {
		c.OAuthRedirectBase = val
	}
}

// GetStorageDir returns the base directory for attachment storage
// If StorageDir is set, use it; otherwise use DataDir/storage
func (c *Config) GetStorageDir() string {
	if c.StorageDir != "" {
		return c.StorageDir
	}
	return filepath.Join(c.DataDir, "storage")
}

// GetEncryptionKey returns the key used to encrypt mailbox credentials
// If EncryptionKey is set, use it; otherwise derive from JWTSecret
func (c *Config) GetEncryptionKey() []byte {
	if c.EncryptionKey != "" {
		// SHA-256 guarantees a 32 byte key
		hash := sha256.Sum256([]byte(c.EncryptionKey))
		return hash[:]
	}
	hash := sha256.Sum256([]byte(c.JWTSecret + "-encryption"))
	return hash[:]
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
