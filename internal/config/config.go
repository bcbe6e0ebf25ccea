// Package config provides configuration management for preservica-upload.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/preservica-tools/preservica-upload/internal/constants"
)

// Environment variable names. The same names are accepted as keys in the
// optional dotenv file; real environment variables take precedence.
const (
	EnvUsername      = "PRESERVICA_USERNAME"
	EnvPassword      = "PRESERVICA_PASSWORD"
	EnvServer        = "PRESERVICA_SERVER"
	EnvTenant        = "PRESERVICA_TENANT"
	EnvBucket        = "PRESERVICA_BUCKET"
	EnvThreshold     = "PRESERVICA_S3_THRESHOLD"
	EnvS3Region      = "PRESERVICA_S3_REGION"
	EnvS3Endpoint    = "PRESERVICA_S3_ENDPOINT"
	EnvS3AccessKey   = "PRESERVICA_S3_ACCESS_KEY"
	EnvS3SecretKey   = "PRESERVICA_S3_SECRET_KEY"
	EnvProxyMode     = "PRESERVICA_PROXY_MODE"
	EnvProxyHost     = "PRESERVICA_PROXY_HOST"
	EnvProxyPort     = "PRESERVICA_PROXY_PORT"
	EnvProxyUser     = "PRESERVICA_PROXY_USER"
	EnvProxyPassword = "PRESERVICA_PROXY_PASSWORD"
	EnvNoProxy       = "PRESERVICA_NO_PROXY"
	EnvErrorLog      = "PRESERVICA_ERROR_LOG"
	EnvInstallDir    = "PRESERVICA_INSTALL_DIR"
)

// DefaultEnvFile is read from the working directory when no --env-file is given.
const DefaultEnvFile = ".env"

// Validation errors
var (
	ErrMissingServer      = errors.New(EnvServer + " is required")
	ErrMissingCredentials = errors.New(EnvUsername + " and " + EnvPassword + " are required")
	ErrInvalidThreshold   = errors.New(EnvThreshold + " must be a positive number of megabytes")
)

// Config is the process-wide configuration, read once at startup and passed
// explicitly to the components that need it.
type Config struct {
	// Preservica connection settings
	Username string
	Password string
	Server   string // host name or URL of the Preservica tenant
	Tenant   string // tenant short name, used for the direct-upload bucket

	// Bulk transport settings
	Bucket          string  // customer bucket for bulk (large package) uploads
	BulkThresholdMB float64 // packages of at least this many MB use the bulk transport
	S3Region        string
	S3Endpoint      string // optional endpoint override for S3-compatible storage
	S3AccessKey     string // static bulk credentials; the AWS default chain is used when empty
	S3SecretKey     string

	// Proxy settings
	ProxyMode     string // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy

	// ErrorLogPath is the fixed diagnostic file written on upload failure.
	ErrorLogPath string

	// InstallDir overrides the directory used by the self-update command.
	InstallDir string
}

// Load reads configuration from the environment and an optional dotenv file.
// A missing dotenv file is not an error; an unreadable one is.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}

	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("env file not found: %w", err)
	}

	cfg := &Config{
		Username:        v.GetString(key(EnvUsername)),
		Password:        v.GetString(key(EnvPassword)),
		Server:          strings.TrimSpace(v.GetString(key(EnvServer))),
		Tenant:          v.GetString(key(EnvTenant)),
		Bucket:          v.GetString(key(EnvBucket)),
		BulkThresholdMB: v.GetFloat64(key(EnvThreshold)),
		S3Region:        v.GetString(key(EnvS3Region)),
		S3Endpoint:      v.GetString(key(EnvS3Endpoint)),
		S3AccessKey:     v.GetString(key(EnvS3AccessKey)),
		S3SecretKey:     v.GetString(key(EnvS3SecretKey)),
		ProxyMode:       strings.ToLower(v.GetString(key(EnvProxyMode))),
		ProxyHost:       v.GetString(key(EnvProxyHost)),
		ProxyPort:       v.GetInt(key(EnvProxyPort)),
		ProxyUser:       v.GetString(key(EnvProxyUser)),
		ProxyPassword:   v.GetString(key(EnvProxyPassword)),
		NoProxy:         v.GetString(key(EnvNoProxy)),
		ErrorLogPath:    v.GetString(key(EnvErrorLog)),
		InstallDir:      v.GetString(key(EnvInstallDir)),
	}

	return cfg, nil
}

// setDefaults registers defaults for every key so AutomaticEnv and the
// dotenv file can both override them.
func setDefaults(v *viper.Viper) {
	v.SetDefault(key(EnvThreshold), constants.DefaultBulkThresholdMB)
	v.SetDefault(key(EnvS3Region), constants.DefaultS3Region)
	v.SetDefault(key(EnvProxyMode), "no-proxy")
	v.SetDefault(key(EnvErrorLog), constants.ErrorLogFile)
	for _, k := range []string{
		EnvUsername, EnvPassword, EnvServer, EnvTenant, EnvBucket, EnvS3Endpoint,
		EnvS3AccessKey, EnvS3SecretKey, EnvProxyHost, EnvProxyPort, EnvProxyUser, EnvProxyPassword, EnvNoProxy, EnvInstallDir,
	} {
		v.SetDefault(key(k), "")
	}
}

// key maps an environment variable name to the viper key. Viper lower-cases
// keys read from files and upper-cases them again for AutomaticEnv.
func key(env string) string {
	return strings.ToLower(env)
}

// Validate checks that the settings needed to reach Preservica are present.
func (c *Config) Validate() error {
	if c.Server == "" {
		return ErrMissingServer
	}
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	if c.BulkThresholdMB <= 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// ServerURL returns the server as an https URL without trailing slash.
func (c *Config) ServerURL() string {
	server := strings.TrimSuffix(c.Server, "/")
	if server != "" && !strings.HasPrefix(server, "http") {
		server = "https://" + server
	}
	return server
}

// ServerHost returns the server host name without scheme.
func (c *Config) ServerHost() string {
	host := strings.TrimPrefix(c.ServerURL(), "https://")
	return strings.TrimPrefix(host, "http://")
}

// TenantName returns the configured tenant, or the first label of the
// server host name when none is set (e.g. "eu" for eu.preservica.com).
func (c *Config) TenantName() string {
	if c.Tenant != "" {
		return c.Tenant
	}
	host := c.ServerHost()
	if i := strings.Index(host, "."); i > 0 {
		return host[:i]
	}
	return host
}
