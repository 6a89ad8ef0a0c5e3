package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMongoDB = "mongodb"
	DriverMemory  = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	MongoDB  MongoDBConfig
	Queue    QueueConfig
	Sync     SyncConfig
	Export   ExportConfig
	Sheets   SheetsConfig
	WhatsApp WhatsAppConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port           string
	LogLevel       string
	OrganizationID string
}

// StoreConfig selects the remote document store.
type StoreConfig struct {
	Driver        string
	CommitTimeout time.Duration
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// QueueConfig locates the offline write queue.
type QueueConfig struct {
	Path     string
	InMemory bool
}

// SyncConfig drives the connectivity probe that triggers background drains.
type SyncConfig struct {
	ProbeSchedule string
}

// ExportConfig holds the spreadsheet export schedule.
type ExportConfig struct {
	CronSchedule string
	Timezone     string
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether the export has somewhere to write.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	OperatorID    string
}

// Enabled reports whether sync alerts can be delivered.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != "" && c.OperatorID != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// missing .env files are fine when configuration comes from the environment
		_ = godotenv.Load()
	}

	commitTimeout, err := time.ParseDuration(getenvWithDefault("COMMIT_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid COMMIT_TIMEOUT: %w", err)
	}
	inMemory, err := strconv.ParseBool(getenvWithDefault("QUEUE_IN_MEMORY", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUEUE_IN_MEMORY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getenvWithDefault("APP_PORT", "8080"),
			LogLevel:       getenvWithDefault("LOG_LEVEL", "info"),
			OrganizationID: os.Getenv("ORGANIZATION_ID"),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getenvWithDefault("STORE_DRIVER", DriverMongoDB)),
			CommitTimeout: commitTimeout,
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "harvest"),
		},
		Queue: QueueConfig{
			Path:     getenvWithDefault("QUEUE_PATH", "data/offline-queue"),
			InMemory: inMemory,
		},
		Sync: SyncConfig{
			ProbeSchedule: getenvWithDefault("SYNC_PROBE_SCHEDULE", "@every 30s"),
		},
		Export: ExportConfig{
			CronSchedule: getenvWithDefault("EXPORT_CRON_SCHEDULE", "0 21 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "America/Argentina/Buenos_Aires"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			OperatorID:    os.Getenv("WHATSAPP_OPERATOR_ID"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}
	if c.Server.OrganizationID == "" {
		return errors.New("ORGANIZATION_ID must be provided")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongoDB, DriverMemory, c.Store.Driver)
	}

	if c.Store.CommitTimeout <= 0 {
		return errors.New("COMMIT_TIMEOUT must be positive")
	}

	if !c.Queue.InMemory && c.Queue.Path == "" {
		return errors.New("QUEUE_PATH must be provided")
	}

	if c.Sync.ProbeSchedule == "" {
		return errors.New("SYNC_PROBE_SCHEDULE must be provided")
	}

	if c.Sheets.Enabled() && c.Export.CronSchedule == "" {
		return errors.New("EXPORT_CRON_SCHEDULE must be provided")
	}
	if c.Export.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}
	if _, err := time.LoadLocation(c.Export.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if c.WhatsApp.Enabled() {
		if c.WhatsApp.BaseURL == "" {
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		}
		if c.WhatsApp.APIVersion == "" {
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
