// Package config materializes application configuration from viper
// (environment variables and an optional config file) into a plain
// struct passed by value through the rest of the program.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pgstash/pgstash/internal/artifact"
)

// Config holds all application configuration.
type Config struct {
	// Database connection
	PGHost     string
	PGPort     int
	PGUser     string
	PGPassword string
	PGDatabase string

	// Storage provider configuration
	StorageProvider string // "s3" or "gcs"
	StoragePrefix   string // optional key prefix inside the bucket

	// S3 configuration
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
	S3Region           string
	S3Endpoint         string // optional custom endpoint

	// GCS configuration
	GCSBucket                string
	GoogleProjectID          string
	GoogleServiceAccountJSON string

	// Local staging
	StagingRoot string

	// Backup behavior
	PGDumpOptions          string
	RetentionDays          int
	MinBackupIntervalHours int
	ForceBackup            bool

	// Observability
	MetricsPort   int // 0 disables the metrics/health server
	LogLevel      string
	LogFile       string // optional rotating log file
	LogMaxSizeMB  int
	LogMaxBackups int
}

// Init wires viper defaults, the PGSTASH_ environment prefix, and an
// optional config file. Called once from CLI setup before Load.
func Init(path string) error {
	viper.SetEnvPrefix("PGSTASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("pgstash")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/pgstash")
		viper.AddConfigPath("$HOME/.pgstash")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("pg.host", "localhost")
	viper.SetDefault("pg.port", 5432)
	viper.SetDefault("pg.user", "postgres")
	viper.SetDefault("staging.root", "/var/tmp/pgstash")
	viper.SetDefault("retention.days", 0) // 0 means no retention policy
	viper.SetDefault("backup.min_interval_hours", 0)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 3)
}

// Load reads the materialized configuration and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		PGHost:     viper.GetString("pg.host"),
		PGPort:     viper.GetInt("pg.port"),
		PGUser:     viper.GetString("pg.user"),
		PGPassword: viper.GetString("pg.password"),
		PGDatabase: viper.GetString("pg.database"),

		StorageProvider: viper.GetString("storage.provider"),
		StoragePrefix:   viper.GetString("storage.prefix"),

		AWSAccessKeyID:     viper.GetString("aws.access_key_id"),
		AWSSecretAccessKey: viper.GetString("aws.secret_access_key"),
		S3Bucket:           viper.GetString("s3.bucket"),
		S3Region:           viper.GetString("s3.region"),
		S3Endpoint:         viper.GetString("s3.endpoint"),

		GCSBucket:                viper.GetString("gcs.bucket"),
		GoogleProjectID:          viper.GetString("google.project_id"),
		GoogleServiceAccountJSON: viper.GetString("google.service_account_json"),

		StagingRoot: viper.GetString("staging.root"),

		PGDumpOptions:          viper.GetString("backup.pg_dump_options"),
		RetentionDays:          viper.GetInt("retention.days"),
		MinBackupIntervalHours: viper.GetInt("backup.min_interval_hours"),
		ForceBackup:            viper.GetBool("backup.force"),

		MetricsPort:   viper.GetInt("metrics.port"),
		LogLevel:      viper.GetString("log.level"),
		LogFile:       viper.GetString("log.file"),
		LogMaxSizeMB:  viper.GetInt("log.max_size_mb"),
		LogMaxBackups: viper.GetInt("log.max_backups"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := artifact.ValidateIdentifier("pg.host", c.PGHost); err != nil {
		return err
	}
	if c.PGDatabase == "" {
		return fmt.Errorf("pg.database is required")
	}
	if err := artifact.ValidateIdentifier("pg.database", c.PGDatabase); err != nil {
		return err
	}
	if c.PGPort <= 0 || c.PGPort > 65535 {
		return fmt.Errorf("pg.port %d is out of range", c.PGPort)
	}

	if c.StorageProvider == "" {
		return fmt.Errorf("storage.provider is required")
	}
	switch c.StorageProvider {
	case "s3":
		if err := c.validateS3(); err != nil {
			return err
		}
	case "gcs":
		if err := c.validateGCS(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid storage.provider: %s (must be 's3' or 'gcs')", c.StorageProvider)
	}

	if c.StagingRoot == "" {
		return fmt.Errorf("staging.root is required")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention.days must be non-negative")
	}
	if c.MinBackupIntervalHours < 0 {
		return fmt.Errorf("backup.min_interval_hours must be non-negative")
	}

	return nil
}

func (c *Config) validateS3() error {
	if c.AWSAccessKeyID == "" {
		return fmt.Errorf("aws.access_key_id is required for S3 storage")
	}
	if c.AWSSecretAccessKey == "" {
		return fmt.Errorf("aws.secret_access_key is required for S3 storage")
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("s3.bucket is required for S3 storage")
	}
	if c.S3Region == "" && c.S3Endpoint == "" {
		return fmt.Errorf("s3.region is required for S3 storage (unless s3.endpoint is set)")
	}
	return nil
}

func (c *Config) validateGCS() error {
	if c.GCSBucket == "" {
		return fmt.Errorf("gcs.bucket is required for GCS storage")
	}
	if c.GoogleProjectID == "" {
		return fmt.Errorf("google.project_id is required for GCS storage")
	}
	if c.GoogleServiceAccountJSON == "" {
		return fmt.Errorf("google.service_account_json is required for GCS storage")
	}
	return nil
}

// ConnString builds a lib/pq connection string from the database
// fields. Values are quoted so passwords may contain spaces.
func (c *Config) ConnString() string {
	parts := []string{
		kv("host", c.PGHost),
		fmt.Sprintf("port=%d", c.PGPort),
		kv("user", c.PGUser),
		kv("dbname", c.PGDatabase),
		"sslmode=prefer",
		"connect_timeout=10",
	}
	if c.PGPassword != "" {
		parts = append(parts, kv("password", c.PGPassword))
	}
	return strings.Join(parts, " ")
}

func kv(key, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return fmt.Sprintf("%s='%s'", key, escaped)
}

// MinBackupInterval returns the backup rate limit window as a Duration.
func (c *Config) MinBackupInterval() time.Duration {
	return time.Duration(c.MinBackupIntervalHours) * time.Hour
}
