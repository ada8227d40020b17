// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds server configuration.
type Config struct {
	Port     string
	LogLevel string
	DataDir  string

	LedgerBackend string // file | sqlite | postgres | redis
	LedgerPath    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	ReputationSource string // ledger | synthetic
	CropProfiles     string
	TelemetrySeed    *uint64
	TelemetrySeedRaw string
	GradeRule        string

	ArchiveType       string // none | fs | s3 | gcs
	ArchiveDir        string
	ArchiveS3Bucket   string
	ArchiveS3Region   string
	ArchiveS3Endpoint string
	ArchiveS3Prefix   string
	ArchiveGCSBucket  string
	ArchiveGCSPrefix  string

	AttestationEnabled bool
	AttestationKey     string

	OTelEnabled  bool
	OTelEndpoint string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load loads configuration from environment variables.
func Load() *Config {
	dataDir := getenv("DATA_DIR", "data")

	cfg := &Config{
		Port:     getenv("PORT", "8080"),
		LogLevel: strings.ToUpper(getenv("LOG_LEVEL", "INFO")),
		DataDir:  dataDir,

		LedgerBackend: strings.ToLower(getenv("LEDGER_BACKEND", "file")),
		LedgerPath:    getenv("LEDGER_PATH", filepath.Join(dataDir, "ledger.json")),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),
		RedisKey:      getenv("REDIS_KEY", "trustmesh:ledger"),

		ReputationSource: strings.ToLower(getenv("REPUTATION_SOURCE", "ledger")),
		CropProfiles:     os.Getenv("CROP_PROFILES"),
		GradeRule:        os.Getenv("GRADE_RULE"),

		ArchiveType:       strings.ToLower(getenv("ARCHIVE_STORAGE_TYPE", "none")),
		ArchiveDir:        getenv("ARCHIVE_DIR", filepath.Join(dataDir, "archive")),
		ArchiveS3Bucket:   os.Getenv("ARCHIVE_S3_BUCKET"),
		ArchiveS3Region:   os.Getenv("ARCHIVE_S3_REGION"),
		ArchiveS3Endpoint: os.Getenv("ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Prefix:   os.Getenv("ARCHIVE_S3_PREFIX"),
		ArchiveGCSBucket:  os.Getenv("ARCHIVE_GCS_BUCKET"),
		ArchiveGCSPrefix:  os.Getenv("ARCHIVE_GCS_PREFIX"),

		AttestationEnabled: os.Getenv("ATTESTATION_ENABLED") == "true",
		AttestationKey:     getenv("ATTESTATION_KEY", filepath.Join(dataDir, "attest.key")),

		OTelEnabled:  os.Getenv("OTEL_ENABLED") == "true",
		OTelEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		RateLimitRPS:   getenvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getenvInt("RATE_LIMIT_BURST", 20),
	}

	if raw := os.Getenv("TELEMETRY_SEED"); raw != "" {
		cfg.TelemetrySeedRaw = raw
		if seed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			cfg.TelemetrySeed = &seed
		}
	}

	return cfg
}

// Validate rejects settings that Load could not interpret. A seed that fails
// to parse would otherwise silently fall back to time seeding.
func (c *Config) Validate() error {
	if c.TelemetrySeedRaw != "" && c.TelemetrySeed == nil {
		return fmt.Errorf("TELEMETRY_SEED %q: want an unsigned 64-bit integer", c.TelemetrySeedRaw)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return fallback
}
