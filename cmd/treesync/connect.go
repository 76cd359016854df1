package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/config"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/credentials"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree/miniotree"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree/s3tree"
)

// backend opens the tree for one bucket of a connected object store.
type backend func(bucket string) tree.Tree

type connectFunc func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend, error)

// connect builds a client for the configured provider.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend, error) {
	keys, err := storageKeys(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Provider == config.ProviderMinio {
		return connectMinio(cfg, keys, logger)
	}
	return connectS3(ctx, cfg, keys, logger)
}

// storageKeys returns the static keys to use. A credentials secret takes
// precedence over keys in the configuration; with neither, the keys are
// empty and S3 falls back to the default credential chain.
func storageKeys(ctx context.Context, cfg *config.Config, logger *slog.Logger) (credentials.Keys, error) {
	if cfg.Storage.CredentialsSecret == "" {
		return credentials.Keys{
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		}, nil
	}

	awsCfg, err := s3tree.LoadAWSConfig(ctx, s3tree.ClientConfig{
		Region:     cfg.Storage.Region,
		MaxRetries: cfg.Transfer.RetryAttempts,
	})
	if err != nil {
		return credentials.Keys{}, err
	}
	// An S3 endpoint override points at an emulator that serves secrets too.
	if cfg.Storage.Provider == config.ProviderS3 && cfg.Storage.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
	}
	return credentials.NewLoaderFromConfig(awsCfg, credentials.WithLogger(logger)).
		Load(ctx, cfg.Storage.CredentialsSecret)
}

func connectS3(ctx context.Context, cfg *config.Config, keys credentials.Keys, logger *slog.Logger) (backend, error) {
	chunkSize, err := cfg.ChunkSizeBytes()
	if err != nil {
		return nil, err
	}

	clientCfg := s3tree.ClientConfig{
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     keys.AccessKeyID,
		SecretAccessKey: keys.SecretAccessKey,
		SessionToken:    keys.SessionToken,
		ForcePathStyle:  cfg.Storage.ForcePathStyle,
		MaxRetries:      cfg.Transfer.RetryAttempts,
	}
	awsCfg, err := s3tree.LoadAWSConfig(ctx, clientCfg)
	if err != nil {
		return nil, err
	}
	client := s3tree.NewClient(awsCfg, clientCfg)

	logger.Debug("connected to s3", "region", awsCfg.Region, "endpoint", cfg.Storage.Endpoint)
	return func(bucket string) tree.Tree {
		return s3tree.New(client, bucket,
			s3tree.WithChunkSize(chunkSize),
			s3tree.WithConcurrency(cfg.Transfer.Concurrency),
			s3tree.WithLogger(logger))
	}, nil
}

func connectMinio(cfg *config.Config, keys credentials.Keys, logger *slog.Logger) (backend, error) {
	host, secure := minioEndpoint(cfg.Storage.Endpoint, !cfg.Storage.Insecure)
	client, err := miniotree.NewClient(miniotree.ClientConfig{
		Endpoint:        host,
		AccessKeyID:     keys.AccessKeyID,
		SecretAccessKey: keys.SecretAccessKey,
		SessionToken:    keys.SessionToken,
		Region:          cfg.Storage.Region,
		Secure:          secure,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("connected to minio", "endpoint", host, "secure", secure)
	return func(bucket string) tree.Tree {
		return miniotree.New(client, bucket,
			miniotree.WithConcurrency(cfg.Transfer.Concurrency),
			miniotree.WithLogger(logger))
	}, nil
}

// minioEndpoint strips a URL scheme from endpoint; the scheme, when present,
// decides whether TLS is used.
func minioEndpoint(endpoint string, secure bool) (string, bool) {
	if host, ok := strings.CutPrefix(endpoint, "https://"); ok {
		return strings.TrimSuffix(host, "/"), true
	}
	if host, ok := strings.CutPrefix(endpoint, "http://"); ok {
		return strings.TrimSuffix(host, "/"), false
	}
	return strings.TrimSuffix(endpoint, "/"), secure
}
