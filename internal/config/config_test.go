package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// setRequiredEnv sets the minimum environment for a valid S3 config.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PGSTASH_PG_HOST", "db1.example.com")
	t.Setenv("PGSTASH_PG_DATABASE", "orders")
	t.Setenv("PGSTASH_STORAGE_PROVIDER", "s3")
	t.Setenv("PGSTASH_AWS_ACCESS_KEY_ID", "AKIATEST")
	t.Setenv("PGSTASH_AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("PGSTASH_S3_BUCKET", "backups")
	t.Setenv("PGSTASH_S3_REGION", "us-east-1")
}

func initForTest(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	// Point at a config name that will not exist so only env applies.
	if err := Init(""); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)
	initForTest(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PGHost != "db1.example.com" {
		t.Errorf("PGHost = %q", cfg.PGHost)
	}
	if cfg.PGPort != 5432 {
		t.Errorf("PGPort = %d, want default 5432", cfg.PGPort)
	}
	if cfg.PGDatabase != "orders" {
		t.Errorf("PGDatabase = %q", cfg.PGDatabase)
	}
	if cfg.StorageProvider != "s3" {
		t.Errorf("StorageProvider = %q", cfg.StorageProvider)
	}
	if cfg.StagingRoot != "/var/tmp/pgstash" {
		t.Errorf("StagingRoot = %q, want default", cfg.StagingRoot)
	}
	if cfg.RetentionDays != 0 {
		t.Errorf("RetentionDays = %d, want default 0", cfg.RetentionDays)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PGSTASH_PG_PORT", "5433")
	t.Setenv("PGSTASH_RETENTION_DAYS", "14")
	t.Setenv("PGSTASH_BACKUP_MIN_INTERVAL_HOURS", "6")
	t.Setenv("PGSTASH_STAGING_ROOT", "/mnt/scratch")
	initForTest(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PGPort != 5433 {
		t.Errorf("PGPort = %d, want 5433", cfg.PGPort)
	}
	if cfg.RetentionDays != 14 {
		t.Errorf("RetentionDays = %d, want 14", cfg.RetentionDays)
	}
	if cfg.MinBackupIntervalHours != 6 {
		t.Errorf("MinBackupIntervalHours = %d, want 6", cfg.MinBackupIntervalHours)
	}
	if cfg.StagingRoot != "/mnt/scratch" {
		t.Errorf("StagingRoot = %q, want /mnt/scratch", cfg.StagingRoot)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			PGHost:             "db1.example.com",
			PGPort:             5432,
			PGUser:             "postgres",
			PGDatabase:         "orders",
			StorageProvider:    "s3",
			AWSAccessKeyID:     "key",
			AWSSecretAccessKey: "secret",
			S3Bucket:           "backups",
			S3Region:           "us-east-1",
			StagingRoot:        "/var/tmp/pgstash",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid s3 config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing database",
			mutate:  func(c *Config) { c.PGDatabase = "" },
			wantErr: "pg.database",
		},
		{
			name:    "host with slash",
			mutate:  func(c *Config) { c.PGHost = "db1/evil" },
			wantErr: "pg.host",
		},
		{
			name:    "database with slash",
			mutate:  func(c *Config) { c.PGDatabase = "a/b" },
			wantErr: "pg.database",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.PGPort = 0 },
			wantErr: "pg.port",
		},
		{
			name:    "missing provider",
			mutate:  func(c *Config) { c.StorageProvider = "" },
			wantErr: "storage.provider",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.StorageProvider = "azure" },
			wantErr: "invalid storage.provider",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.S3Bucket = "" },
			wantErr: "s3.bucket",
		},
		{
			name: "s3 without region or endpoint",
			mutate: func(c *Config) {
				c.S3Region = ""
				c.S3Endpoint = ""
			},
			wantErr: "s3.region",
		},
		{
			name: "s3 custom endpoint without region is fine",
			mutate: func(c *Config) {
				c.S3Region = ""
				c.S3Endpoint = "https://minio.internal:9000"
			},
		},
		{
			name: "gcs without project",
			mutate: func(c *Config) {
				c.StorageProvider = "gcs"
				c.GCSBucket = "backups"
				c.GoogleServiceAccountJSON = "{}"
			},
			wantErr: "google.project_id",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.RetentionDays = -1 },
			wantErr: "retention.days",
		},
		{
			name:    "empty staging root",
			mutate:  func(c *Config) { c.StagingRoot = "" },
			wantErr: "staging.root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConnString(t *testing.T) {
	cfg := &Config{
		PGHost:     "db1.example.com",
		PGPort:     5433,
		PGUser:     "backup_role",
		PGPassword: "p ss'word",
		PGDatabase: "orders",
	}

	got := cfg.ConnString()

	for _, want := range []string{
		"host='db1.example.com'",
		"port=5433",
		"user='backup_role'",
		"dbname='orders'",
		`password='p ss\'word'`,
		"sslmode=prefer",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ConnString() = %q, missing %q", got, want)
		}
	}
}
