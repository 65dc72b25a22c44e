// Package config reads process settings from SHELFLIFE_* environment
// variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dukerupert/shelflife/internal/objectstore"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendS3       Backend = "s3"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// Zone names the record zone this process syncs. Every device of a
	// user shares one zone.
	Zone string

	Backend     Backend
	DBPath      string
	DatabaseURL string
	S3          objectstore.Config

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	// AllowedOrigins are host patterns accepted on websocket upgrades.
	AllowedOrigins []string
	TraceStdout    bool
}

// Load reads the environment. Unset variables fall back to defaults; only a
// malformed value is an error.
func Load() (Config, error) {
	cfg := Config{
		Port:            getenv("SHELFLIFE_PORT", "8080"),
		LogLevel:        getenv("SHELFLIFE_LOG_LEVEL", "info"),
		LogFormat:       getenv("SHELFLIFE_LOG_FORMAT", "text"),
		Zone:            getenv("SHELFLIFE_ZONE", "default"),
		Backend:         Backend(strings.ToLower(getenv("SHELFLIFE_STORE", string(BackendSQLite)))),
		DBPath:          getenv("SHELFLIFE_DB_PATH", "shelflife.db"),
		DatabaseURL:     os.Getenv("SHELFLIFE_DATABASE_URL"),
		VAPIDPublicKey:  os.Getenv("SHELFLIFE_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("SHELFLIFE_VAPID_PRIVATE_KEY"),
		VAPIDSubscriber: os.Getenv("SHELFLIFE_VAPID_SUBSCRIBER"),
		S3: objectstore.Config{
			Endpoint:   os.Getenv("SHELFLIFE_S3_ENDPOINT"),
			Bucket:     os.Getenv("SHELFLIFE_S3_BUCKET"),
			Region:     getenv("SHELFLIFE_S3_REGION", "us-east-1"),
			AccessKey:  os.Getenv("SHELFLIFE_S3_ACCESS_KEY"),
			SecretKey:  os.Getenv("SHELFLIFE_S3_SECRET_KEY"),
			Passphrase: os.Getenv("SHELFLIFE_S3_PASSPHRASE"),
		},
	}

	if origins := os.Getenv("SHELFLIFE_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if v := os.Getenv("SHELFLIFE_TRACE_STDOUT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("SHELFLIFE_TRACE_STDOUT: %w", err)
		}
		cfg.TraceStdout = b
	}

	if v := os.Getenv("SHELFLIFE_S3_SALT"); v != "" {
		salt, err := hex.DecodeString(v)
		if err != nil {
			return Config{}, fmt.Errorf("SHELFLIFE_S3_SALT: %w", err)
		}
		cfg.S3.Salt = salt
	}

	return cfg, nil
}

// Validate reports every setting the selected backend is missing.
func (c Config) Validate() error {
	var errs []error
	if c.Zone == "" {
		errs = append(errs, errors.New("SHELFLIFE_ZONE is empty"))
	}

	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("SHELFLIFE_DB_PATH is required for the sqlite store"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("SHELFLIFE_DATABASE_URL is required for the postgres store"))
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("SHELFLIFE_S3_BUCKET is required for the s3 store"))
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			errs = append(errs, errors.New("SHELFLIFE_S3_ACCESS_KEY and SHELFLIFE_S3_SECRET_KEY are required for the s3 store"))
		}
		if c.S3.Passphrase != "" && len(c.S3.Salt) == 0 {
			errs = append(errs, errors.New("SHELFLIFE_S3_SALT is required when SHELFLIFE_S3_PASSPHRASE is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SHELFLIFE_STORE %q", c.Backend))
	}

	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("SHELFLIFE_VAPID_PUBLIC_KEY and SHELFLIFE_VAPID_PRIVATE_KEY must be set together"))
	}
	return errors.Join(errs...)
}

// PushEnabled reports whether wake pushes can be signed.
func (c Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
