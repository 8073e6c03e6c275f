package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/flagx"
	"github.com/dmitrijs2005/gophmaps/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// It is seeded from the current Config before unmarshalling, so keys absent
// from the file keep their previous values.
type JsonConfig struct {
	HTTPAddress                  string         `json:"http_address"`
	PublicURL                    string         `json:"public_url"`
	ShutdownTimeout              timex.Duration `json:"shutdown_timeout"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	StorageBackend               string         `json:"storage_backend"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	StorageFailureThreshold      uint32         `json:"storage_failure_threshold"`
	StorageOpenTimeout           timex.Duration `json:"storage_open_timeout"`
	UploadURLTTL                 timex.Duration `json:"upload_url_ttl"`
	DownloadURLTTL               timex.Duration `json:"download_url_ttl"`
	MaxUploadSize                int64          `json:"max_upload_size"`
	MediaGracePeriod             timex.Duration `json:"media_grace_period"`
	SweepInterval                timex.Duration `json:"sweep_interval"`
	SweepBatchSize               int            `json:"sweep_batch_size"`
	SweepMaxAttempts             int            `json:"sweep_max_attempts"`
	DeleteRetryInitial           timex.Duration `json:"delete_retry_initial"`
	DeleteRetryMaxElapsed        timex.Duration `json:"delete_retry_max_elapsed"`
	ReconcileInterval            timex.Duration `json:"reconcile_interval"`
	LogBackend                   string         `json:"log_backend"`
	LogLevel                     string         `json:"log_level"`
	RateLimitRequests            int            `json:"rate_limit_requests"`
	RateLimitWindow              timex.Duration `json:"rate_limit_window"`
	CORSOrigins                  []string       `json:"cors_origins"`
}

func dur(v time.Duration) timex.Duration { return timex.Duration{Duration: v} }

func newJsonConfig(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddress:                  c.HTTPAddress,
		PublicURL:                    c.PublicURL,
		ShutdownTimeout:              dur(c.ShutdownTimeout),
		DatabaseDSN:                  c.DatabaseDSN,
		SecretKey:                    c.SecretKey,
		AccessTokenValidityDuration:  dur(c.AccessTokenValidityDuration),
		RefreshTokenValidityDuration: dur(c.RefreshTokenValidityDuration),
		StorageBackend:               c.StorageBackend,
		S3RootUser:                   c.S3RootUser,
		S3RootPassword:               c.S3RootPassword,
		S3Bucket:                     c.S3Bucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		StorageFailureThreshold:      c.StorageFailureThreshold,
		StorageOpenTimeout:           dur(c.StorageOpenTimeout),
		UploadURLTTL:                 dur(c.UploadURLTTL),
		DownloadURLTTL:               dur(c.DownloadURLTTL),
		MaxUploadSize:                c.MaxUploadSize,
		MediaGracePeriod:             dur(c.MediaGracePeriod),
		SweepInterval:                dur(c.SweepInterval),
		SweepBatchSize:               c.SweepBatchSize,
		SweepMaxAttempts:             c.SweepMaxAttempts,
		DeleteRetryInitial:           dur(c.DeleteRetryInitial),
		DeleteRetryMaxElapsed:        dur(c.DeleteRetryMaxElapsed),
		ReconcileInterval:            dur(c.ReconcileInterval),
		LogBackend:                   c.LogBackend,
		LogLevel:                     c.LogLevel,
		RateLimitRequests:            c.RateLimitRequests,
		RateLimitWindow:              dur(c.RateLimitWindow),
		CORSOrigins:                  c.CORSOrigins,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddress = j.HTTPAddress
	c.PublicURL = j.PublicURL
	c.ShutdownTimeout = j.ShutdownTimeout.Duration
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.RefreshTokenValidityDuration = j.RefreshTokenValidityDuration.Duration
	c.StorageBackend = j.StorageBackend
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.StorageFailureThreshold = j.StorageFailureThreshold
	c.StorageOpenTimeout = j.StorageOpenTimeout.Duration
	c.UploadURLTTL = j.UploadURLTTL.Duration
	c.DownloadURLTTL = j.DownloadURLTTL.Duration
	c.MaxUploadSize = j.MaxUploadSize
	c.MediaGracePeriod = j.MediaGracePeriod.Duration
	c.SweepInterval = j.SweepInterval.Duration
	c.SweepBatchSize = j.SweepBatchSize
	c.SweepMaxAttempts = j.SweepMaxAttempts
	c.DeleteRetryInitial = j.DeleteRetryInitial.Duration
	c.DeleteRetryMaxElapsed = j.DeleteRetryMaxElapsed.Duration
	c.ReconcileInterval = j.ReconcileInterval.Duration
	c.LogBackend = j.LogBackend
	c.LogLevel = j.LogLevel
	c.RateLimitRequests = j.RateLimitRequests
	c.RateLimitWindow = j.RateLimitWindow.Duration
	c.CORSOrigins = j.CORSOrigins
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag in args. Without the flag nothing is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := newJsonConfig(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.apply(config)
	return nil
}
