// Package config provides centralized default values for the analytics service
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Database Pool
	DBDriver                 string
	DBDataSource             string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	SlowQueryThreshold       time.Duration

	// Tracking
	SessionCookieName   string
	SessionCookieMaxAge int
	SettingsRefreshTTL  time.Duration
	JourneyLockStripes  int
	MaxBatchEvents      int
	DebugLogEnabled     bool

	// Auth
	JWTSecret         string
	StaffPasswordHash string
	TokenLifetime     time.Duration

	// Email
	ResendAPIKey    string
	ReportFromEmail string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Database Pool
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBDataSource = getEnvString("DB_DATA_SOURCE", "analytics.db")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 200*time.Millisecond)

	// Tracking
	SessionCookieName = getEnvString("SESSION_COOKIE_NAME", "aps_session")
	SessionCookieMaxAge = getEnvInt("SESSION_COOKIE_MAX_AGE_SECONDS", 60*60*24*365)
	SettingsRefreshTTL = getEnvDuration("SETTINGS_REFRESH_TTL", 60*time.Second)
	JourneyLockStripes = getEnvInt("JOURNEY_LOCK_STRIPES", 64)
	MaxBatchEvents = getEnvInt("MAX_BATCH_EVENTS", 50)
	DebugLogEnabled = getEnvBool("DEBUG_LOG_ENABLED", false)

	// Auth
	JWTSecret = getEnvString("JWT_SECRET", "")
	StaffPasswordHash = getEnvString("STAFF_PASSWORD_HASH", "")
	TokenLifetime = getEnvDuration("TOKEN_LIFETIME", 24*time.Hour)

	// Email
	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	ReportFromEmail = getEnvString("REPORT_FROM_EMAIL", "analytics@ampepsoc.org")
}
