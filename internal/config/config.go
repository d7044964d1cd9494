package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LArkema/dctransistor-project/internal/telemetry"
)

// Telemetry source names accepted by TELEMETRY_SOURCE.
const (
	SourcePositions = "positions"
	SourceGIS       = "gis"
	SourceGTFSRT    = "gtfsrt"
)

// Config holds all configuration for the dctransistor service
type Config struct {
	// Network topology; empty uses the embedded WMATA network
	LinesFile string

	// Telemetry
	TelemetrySource         string
	WMATAAPIKey             string
	WMATAPositionsURL       string
	WMATAGISURL             string
	GTFSVehiclePositionsURL string

	// Polling
	PollInterval      time.Duration
	RetentionDuration time.Duration

	// Database; DatabaseURL selects PostgreSQL over SQLite
	DatabasePath string
	DatabaseURL  string

	// HTTP
	Port        string
	CORSOrigins []string
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		LinesFile: getEnv("LINES_FILE", ""),

		TelemetrySource:         strings.ToLower(getEnv("TELEMETRY_SOURCE", SourcePositions)),
		WMATAAPIKey:             getEnv("WMATA_API_KEY", ""),
		WMATAPositionsURL:       getEnv("WMATA_POSITIONS_URL", telemetry.DefaultPositionsURL),
		WMATAGISURL:             getEnv("WMATA_GIS_URL", telemetry.DefaultGISURL),
		GTFSVehiclePositionsURL: getEnv("GTFS_VEHICLE_POSITIONS_URL", ""),

		PollInterval:      time.Duration(getEnvInt("POLL_INTERVAL", 20)) * time.Second,
		RetentionDuration: time.Duration(getEnvInt("RETENTION_HOURS", 24)) * time.Hour,

		DatabasePath: getEnv("SQLITE_DATABASE", "data/dctransistor.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8081"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
