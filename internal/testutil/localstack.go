package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

const localStackRegion = "us-east-1"

// LocalStack is a running LocalStack container serving S3 and Secrets Manager.
type LocalStack struct {
	container *localstack.LocalStackContainer
	endpoint  string
	cfg       aws.Config
	client    *s3.Client
}

// StartLocalStack starts a LocalStack container for the duration of t.
// The test is skipped under -short or when no container runtime is available.
func StartLocalStack(t *testing.T) *LocalStack {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping LocalStack test in short mode")
	}

	ctx := context.Background()
	container, err := localstack.Run(ctx,
		"localstack/localstack:latest",
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort("4566").
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		t.Skipf("LocalStack unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate LocalStack: %v", err)
		}
	})

	port, err := nat.NewPort("tcp", "4566")
	if err != nil {
		t.Fatalf("LocalStack port: %v", err)
	}
	endpoint, err := container.PortEndpoint(ctx, port, "http")
	if err != nil {
		t.Fatalf("LocalStack endpoint: %v", err)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(localStackRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("load AWS config: %v", err)
	}
	cfg.BaseEndpoint = aws.String(endpoint)

	ls := &LocalStack{
		container: container,
		endpoint:  endpoint,
		cfg:       cfg,
	}
	ls.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(ls.endpoint)
	})

	return ls
}

// AWSConfig returns an AWS configuration addressing the container, for
// clients of services other than S3.
func (l *LocalStack) AWSConfig() aws.Config {
	return l.cfg
}

// Client returns an S3 client bound to the container.
func (l *LocalStack) Client() *s3.Client {
	return l.client
}

// Endpoint returns the container's S3 endpoint URL.
func (l *LocalStack) Endpoint() string {
	return l.endpoint
}

// Region returns the region the client is configured for.
func (l *LocalStack) Region() string {
	return localStackRegion
}

// CreateBucket creates bucket in the container.
func (l *LocalStack) CreateBucket(t *testing.T, bucket string) {
	t.Helper()
	_, err := l.client.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		t.Fatalf("create bucket %s: %v", bucket, err)
	}
}
