//go:build integration

package credentials_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/credentials"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/testutil"
)

func TestLoader_LocalStack(t *testing.T) {
	ls := testutil.StartLocalStack(t)
	ctx := context.Background()

	_, err := secretsmanager.NewFromConfig(ls.AWSConfig()).CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String("treesync/storage"),
		SecretString: aws.String(`{"access_key_id":"AKIAEXAMPLE","secret_access_key":"s3cr3t"}`),
	})
	require.NoError(t, err)

	loader := credentials.NewLoaderFromConfig(ls.AWSConfig())

	keys, err := loader.Load(ctx, "treesync/storage")
	require.NoError(t, err)
	assert.Equal(t, credentials.Keys{AccessKeyID: "AKIAEXAMPLE", SecretAccessKey: "s3cr3t"}, keys)

	_, err = loader.Load(ctx, "treesync/missing")
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}
