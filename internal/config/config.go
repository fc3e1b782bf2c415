package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys. Each one is read from the upper-cased environment variable of the
// same name.
const (
	KeyPort                     = "port"
	KeySQLiteDBPath             = "sqlite_db_path"
	KeyDataBackend              = "data_backend"
	KeyLogLevel                 = "log_level"
	KeyAMQPURL                  = "amqp_url"
	KeyAMQPExchange             = "amqp_exchange"
	KeyAMQPQueue                = "amqp_queue"
	KeyGoogleSpreadsheetID      = "google_spreadsheet_id"
	KeyGoogleSheetName          = "google_sheet_name"
	KeyGoogleServiceAccountFile = "google_service_account_file"
	KeyGoogleServiceAccountJSON = "google_service_account_json"
	KeyShutdownTimeout          = "shutdown_timeout"
)

const (
	defaultPort            = "8081"
	defaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	SQLiteDBPath string

	LogLevel string

	// AMQP; activities are written directly when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	ShutdownTimeout time.Duration
}

// NewViper returns a viper instance with defaults set and environment
// lookup enabled. Command-line flags are bound on top of it by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeyPort, defaultPort)
	v.SetDefault(KeySQLiteDBPath, "./data/ledger.db")
	v.SetDefault(KeyDataBackend, "sqlite")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyAMQPExchange, "ledger")
	v.SetDefault(KeyAMQPQueue, "activity_logs")
	v.SetDefault(KeyGoogleSheetName, "Expenses")
	v.SetDefault(KeyShutdownTimeout, defaultShutdownTimeout.String())
	return v
}

// Load reads configuration from the environment.
func Load() *Config {
	return FromViper(NewViper())
}

// FromViper builds a Config from v. Malformed durations fall back to their
// defaults.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Port:         v.GetString(KeyPort),
		DataBackend:  strings.ToLower(v.GetString(KeyDataBackend)),
		SQLiteDBPath: v.GetString(KeySQLiteDBPath),
		LogLevel:     v.GetString(KeyLogLevel),

		AMQPURL:      v.GetString(KeyAMQPURL),
		AMQPExchange: v.GetString(KeyAMQPExchange),
		AMQPQueue:    v.GetString(KeyAMQPQueue),

		GoogleSpreadsheetID:      v.GetString(KeyGoogleSpreadsheetID),
		GoogleSheetName:          v.GetString(KeyGoogleSheetName),
		GoogleServiceAccountFile: v.GetString(KeyGoogleServiceAccountFile),
		GoogleServiceAccountJSON: v.GetString(KeyGoogleServiceAccountJSON),

		ShutdownTimeout: getDuration(v, KeyShutdownTimeout, defaultShutdownTimeout),
	}
}

// SheetsEnabled reports whether a spreadsheet export target is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// AMQPEnabled reports whether activities go through the broker.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	} else if c.ShutdownTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at most 5 minutes", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	raw := v.GetString(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}
