package s3tree

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
)

// DefaultRegion is used when neither the settings nor the environment name one.
const DefaultRegion = "us-east-1"

// ClientConfig holds the settings used to build an S3 client.
type ClientConfig struct {
	// Region is the AWS region. Empty falls back to the environment, then to
	// DefaultRegion.
	Region string

	// Endpoint overrides the service endpoint, for S3-compatible stores and
	// local emulators.
	Endpoint string

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// ForcePathStyle addresses buckets as endpoint/bucket instead of bucket.endpoint.
	ForcePathStyle bool

	// MaxRetries bounds SDK retry attempts. Zero keeps the SDK default.
	MaxRetries int

	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration
}

// LoadAWSConfig resolves an aws.Config from cfg and the default chain.
func LoadAWSConfig(ctx context.Context, cfg ClientConfig) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Timeout > 0 {
		loadOpts = append(loadOpts, config.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, errors.New("client", errors.ErrConfig, err).WithMessage("load aws configuration")
	}

	if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}
	if cfg.MaxRetries > 0 {
		awsCfg.RetryMaxAttempts = cfg.MaxRetries
	}
	return awsCfg, nil
}

// NewClient builds an S3 client from an aws.Config and the endpoint settings in cfg.
func NewClient(awsCfg aws.Config, cfg ClientConfig) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
}
