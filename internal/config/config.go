// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"sitecheckout/internal/logger"
)

const (
	defaultBackendURL     = "http://127.0.0.1:5000"
	defaultBackendTimeout = 10 * time.Second
	defaultStockPassword  = "0000"
	defaultSessionTTL     = 2 * time.Hour
)

// Checkout holds everything the checkout host needs to talk to the inventory backend
// and to run its sessions.
type Checkout struct {
	BackendURL     string
	BackendTimeout time.Duration
	StockPassword  string
	CatalogFile    string
	SessionTTL     time.Duration
	AllowedOrigin  string
	TimeZone       *time.Location
}

//
// --- Utility Helpers ---
//

// Environment returns the running environment name, "dev" when unset.
func Environment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	return env
}

// Helper: get a setting based on ENVIRONMENT (dev or prod), falling back to the bare name
func GetEnvBasedSetting(base string) string {
	if v := os.Getenv(fmt.Sprintf("%s_%s", base, strings.ToUpper(Environment()))); v != "" {
		return v
	}
	return os.Getenv(base)
}

// Helper: log which environment is running
func LogCurrentEnvironment() {
	if Environment() == "dev" {
		logger.LogInfo("Running in development environment")
	} else {
		logger.LogInfo("Running in production environment")
	}
}

//
// --- Loaders ---
//

// LoadEnv reads .env file
func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Could not determine working directory: %v", err)
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found in %s. Using system environment variables.", wd)
	} else {
		log.Printf("Loaded environment variables from .env file in %s", wd)
	}
}

// LoggerConfig returns a logger.Config struct populated from environment
func LoggerConfig() logger.Config {
	logDir := GetEnvBasedSetting("LOGS_DIRECTORY")
	if logDir == "" {
		logDir = "./logs"
	}

	logFormat := GetEnvBasedSetting("LOG_FILE_FORMAT")
	if logFormat == "" {
		logFormat = "checkout_%s.log"
	}

	timezone := os.Getenv("TIME_ZONE")
	if timezone == "" {
		timezone = "Local"
	}

	return logger.Config{
		LogsDirectory: logDir,
		LogFileFormat: logFormat,
		TimeZone:      timezone,
	}
}

// LoadCheckoutConfig reads backend, gate and session settings
func LoadCheckoutConfig() (Checkout, error) {
	cfg := Checkout{
		BackendURL:     strings.TrimRight(GetEnvBasedSetting("BACKEND_URL"), "/"),
		BackendTimeout: defaultBackendTimeout,
		StockPassword:  os.Getenv("STOCK_PASSWORD"),
		CatalogFile:    GetEnvBasedSetting("CATALOG_FILE"),
		SessionTTL:     defaultSessionTTL,
		AllowedOrigin:  GetEnvBasedSetting("ALLOWED_ORIGIN"),
		TimeZone:       time.Local,
	}

	if cfg.BackendURL == "" {
		cfg.BackendURL = defaultBackendURL
		logger.LogWarn("BACKEND_URL not set, using default: %s", cfg.BackendURL)
	} else {
		logger.LogInfo("Inventory backend: %s", cfg.BackendURL)
	}

	if cfg.StockPassword == "" {
		cfg.StockPassword = defaultStockPassword
		logger.LogWarn("STOCK_PASSWORD not set, using the built-in default")
	}

	if s := GetEnvBasedSetting("BACKEND_TIMEOUT_SECONDS"); s != "" {
		seconds, err := strconv.Atoi(s)
		if err != nil || seconds <= 0 {
			return Checkout{}, fmt.Errorf("invalid BACKEND_TIMEOUT_SECONDS: %q", s)
		}
		cfg.BackendTimeout = time.Duration(seconds) * time.Second
	}

	if s := GetEnvBasedSetting("SESSION_TTL_MINUTES"); s != "" {
		minutes, err := strconv.Atoi(s)
		if err != nil || minutes <= 0 {
			return Checkout{}, fmt.Errorf("invalid SESSION_TTL_MINUTES: %q", s)
		}
		cfg.SessionTTL = time.Duration(minutes) * time.Minute
	}

	if tz := os.Getenv("TIME_ZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Checkout{}, fmt.Errorf("invalid TIME_ZONE %q: %w", tz, err)
		}
		cfg.TimeZone = loc
	}

	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
		logger.LogWarn("ALLOWED_ORIGIN not set, using '*' (allow all origins)")
	}

	if cfg.CatalogFile != "" {
		logger.LogInfo("Reference data will be read from %s instead of the backend", cfg.CatalogFile)
	}

	return cfg, nil
}

// ServerAddress builds the listen address from SERVER_HOST and SERVER_PORT
func ServerAddress() string {
	host := os.Getenv("SERVER_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "5052"
	}
	return host + ":" + port
}
