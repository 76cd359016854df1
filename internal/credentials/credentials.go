// Package credentials resolves object-store access keys stored in AWS Secrets
// Manager.
//
// The secret value is a JSON document:
//
//	{"access_key_id": "...", "secret_access_key": "...", "session_token": "..."}
//
// session_token is optional. Secret values are never logged.
package credentials

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
)

// AWS error codes returned by Secrets Manager.
const (
	ResourceNotFoundException = "ResourceNotFoundException"
	AccessDeniedException     = "AccessDeniedException"
)

// SecretsAPI is the subset of the Secrets Manager client used to fetch keys.
type SecretsAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

var _ SecretsAPI = (*secretsmanager.Client)(nil)

// Keys are static object-store credentials.
type Keys struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
}

// Loader fetches Keys from Secrets Manager.
type Loader struct {
	api    SecretsAPI
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used to record lookups.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a Loader over api.
func NewLoader(api SecretsAPI, opts ...Option) *Loader {
	l := &Loader{
		api:    api,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewLoaderFromConfig creates a Loader backed by a Secrets Manager client
// built from cfg.
func NewLoaderFromConfig(cfg aws.Config, opts ...Option) *Loader {
	return NewLoader(secretsmanager.NewFromConfig(cfg), opts...)
}

// Load retrieves and decodes the secret named secretID. Every failure is a
// configuration failure: the run cannot proceed without credentials.
func (l *Loader) Load(ctx context.Context, secretID string) (Keys, error) {
	if secretID == "" {
		return Keys{}, errors.NewConfigError("credentials", "secret name cannot be empty")
	}

	l.logger.DebugContext(ctx, "retrieving credentials secret", "secret_name", secretID)

	out, err := l.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Keys{}, errors.NewCancelledError("credentials", err).WithPath(secretID)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case ResourceNotFoundException:
				return Keys{}, errors.New("credentials", errors.ErrConfig, err).
					WithPath(secretID).WithMessage("secret not found")
			case AccessDeniedException:
				return Keys{}, errors.New("credentials", errors.ErrConfig, err).
					WithPath(secretID).WithMessage("access denied to secret")
			}
		}
		return Keys{}, errors.New("credentials", errors.ErrConfig, err).WithPath(secretID)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		raw = out.SecretBinary
	default:
		return Keys{}, errors.NewConfigError("credentials", "secret value is empty").WithPath(secretID)
	}

	var keys Keys
	if err := json.Unmarshal(raw, &keys); err != nil {
		// The decode error may quote the payload, so it is not wrapped.
		return Keys{}, errors.NewConfigError("credentials", "secret is not a JSON credentials document").
			WithPath(secretID)
	}
	if keys.AccessKeyID == "" || keys.SecretAccessKey == "" {
		return Keys{}, errors.NewConfigError("credentials", "secret must contain access_key_id and secret_access_key").
			WithPath(secretID)
	}

	l.logger.DebugContext(ctx, "credentials secret retrieved", "secret_name", secretID)
	return keys, nil
}
