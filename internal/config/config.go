// Package config loads the settings shared by every treesync command.
//
// Settings come from, in increasing precedence: built-in defaults, a YAML or
// JSON file, TREESYNC_* environment variables and command-line flags bound
// by the caller.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/fs"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/validation"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. TREESYNC_STORAGE_BUCKET.
	EnvPrefix = "TREESYNC"

	ProviderS3    = "s3"
	ProviderMinio = "minio"

	DefaultRegion        = "us-east-1"
	DefaultConcurrency   = 4
	DefaultRetryAttempts = 3
	DefaultChunkSize     = "8MiB"
	DefaultLogLevel      = "info"

	// minChunkSize is the smallest part S3 accepts in a multipart upload.
	minChunkSize = 5 * 1024 * 1024
)

// candidates are tried in order when no explicit file is given.
var candidates = []string{"config.yaml", "config.yml", "config.json"}

// Storage selects and authenticates the object store.
type Storage struct {
	Provider          string `mapstructure:"provider" yaml:"provider"`
	Bucket            string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region            string `mapstructure:"region" yaml:"region"`
	Endpoint          string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKeyID       string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey   string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle    bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
	Insecure          bool   `mapstructure:"insecure" yaml:"insecure,omitempty"`
	CredentialsSecret string `mapstructure:"credentials_secret" yaml:"credentials_secret,omitempty"`
}

// Transfer tunes how work is spread over connections.
type Transfer struct {
	Concurrency   int    `mapstructure:"concurrency" yaml:"concurrency"`
	RetryAttempts int    `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	ChunkSize     string `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// Log configures console logging.
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config is the complete treesync configuration.
type Config struct {
	Storage  Storage  `mapstructure:"storage" yaml:"storage"`
	Transfer Transfer `mapstructure:"transfer" yaml:"transfer"`
	Log      Log      `mapstructure:"log" yaml:"log"`

	// Path is the file the configuration was read from, if any
	Path string `mapstructure:"-" yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Provider: ProviderS3,
			Region:   DefaultRegion,
		},
		Transfer: Transfer{
			Concurrency:   DefaultConcurrency,
			RetryAttempts: DefaultRetryAttempts,
			ChunkSize:     DefaultChunkSize,
		},
		Log: Log{
			Level: DefaultLogLevel,
		},
	}
}

// DefaultDir returns the directory searched for a configuration file,
// $XDG_CONFIG_HOME/treesync or its platform equivalent.
func DefaultDir() string {
	// xdg caches the environment at init
	xdg.Reload()
	return filepath.Join(xdg.ConfigHome, "treesync")
}

// DefaultPath returns the file written by Save when no path is given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), candidates[0])
}

// SetDefaults registers every key with its default so that environment
// variables are honoured even for keys absent from the file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", d.Storage.Region)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.force_path_style", false)
	v.SetDefault("storage.insecure", false)
	v.SetDefault("storage.credentials_secret", "")
	v.SetDefault("transfer.concurrency", d.Transfer.Concurrency)
	v.SetDefault("transfer.retry_attempts", d.Transfer.RetryAttempts)
	v.SetDefault("transfer.chunk_size", d.Transfer.ChunkSize)
	v.SetDefault("log.level", d.Log.Level)
}

// Load reads the configuration into v and validates it. An explicit path
// must exist; otherwise the default directory is searched and a missing
// file leaves the defaults in place.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		found, err := find(DefaultDir())
		if err != nil {
			return nil, err
		}
		path = found
	} else if ok, err := fs.Exists(path); err != nil || !ok {
		return nil, errors.NewConfigError("load", "config file does not exist").WithPath(path)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.New("load", errors.ErrConfig, err).WithPath(path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New("load", errors.ErrConfig, err).WithPath(path)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func find(dir string) (string, error) {
	for _, name := range candidates {
		p := filepath.Join(dir, name)
		ok, err := fs.Exists(p)
		if err != nil {
			return "", errors.NewIOError("load", err).WithPath(p)
		}
		if ok {
			return p, nil
		}
	}
	return "", nil
}

// Validate checks the configuration for values no command can work with.
func (c *Config) Validate() error {
	if !slices.Contains([]string{ProviderS3, ProviderMinio}, c.Storage.Provider) {
		return errors.NewConfigError("validate", "storage.provider must be s3 or minio, got "+c.Storage.Provider)
	}
	if c.Storage.Provider == ProviderMinio && c.Storage.Endpoint == "" {
		return errors.NewConfigError("validate", "storage.endpoint is required for the minio provider")
	}
	if c.Storage.Bucket != "" {
		if err := validation.ValidateBucketName(c.Storage.Bucket); err != nil {
			return err
		}
	}
	if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
		return errors.NewConfigError("validate", "storage.access_key_id and storage.secret_access_key must be set together")
	}
	if c.Transfer.Concurrency <= 0 {
		return errors.NewConfigError("validate", "transfer.concurrency must be positive")
	}
	if c.Transfer.RetryAttempts < 0 {
		return errors.NewConfigError("validate", "transfer.retry_attempts must not be negative")
	}
	size, err := c.ChunkSizeBytes()
	if err != nil {
		return err
	}
	if size < minChunkSize {
		return errors.NewConfigError("validate", "transfer.chunk_size must be at least 5MiB")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewConfigError("validate", "log.level must be debug, info, warn or error")
	}
	return nil
}

// ChunkSizeBytes parses Transfer.ChunkSize, which accepts humanized sizes
// such as "8MiB" or "16MB".
func (c *Config) ChunkSizeBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.Transfer.ChunkSize)
	if err != nil {
		return 0, errors.New("validate", errors.ErrConfig, err).WithMessage("transfer.chunk_size")
	}
	return int64(n), nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Storage.SecretAccessKey != "" {
		out.Storage.SecretAccessKey = "********"
	}
	return &out
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.New("save", errors.ErrConfig, err)
	}
	return data, nil
}

// Save writes the configuration as YAML to path, creating parent
// directories. The file is created with mode 0600.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.NewIOError("save", err).WithPath(path)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.NewIOError("save", err).WithPath(path)
	}
	c.Path = path
	return nil
}
