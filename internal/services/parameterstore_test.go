package services

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	pages [][]types.Parameter
	err   error
	calls int
	paths []string
}

func (f *fakeSSM) GetParametersByPath(_ context.Context, in *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	f.calls++
	f.paths = append(f.paths, aws.ToString(in.Path))
	if f.err != nil {
		return nil, f.err
	}

	page := 0
	if in.NextToken != nil {
		page = len(aws.ToString(in.NextToken))
	}

	out := &ssm.GetParametersByPathOutput{Parameters: f.pages[page]}
	if page+1 < len(f.pages) {
		out.NextToken = aws.String(string(make([]byte, page+1)))
	}
	return out, nil
}

func param(name, value string) types.Parameter {
	return types.Parameter{Name: aws.String(name), Value: aws.String(value)}
}

func TestSSMParameterStore(t *testing.T) {
	ctx := context.Background()
	client := &fakeSSM{
		pages: [][]types.Parameter{
			{param("/dev/miniapp/OPENAI_API_KEY", "sk-1"), param("/dev/miniapp/OPENAI_BASE_URL", "https://api")},
			{param("/dev/miniapp/TELEGRAM_BOT_TOKEN", "123:abc"), {Name: aws.String("/dev/miniapp/NIL")}},
		},
	}

	store := NewSSMParameterStore(client, "dev/miniapp/")

	got, err := store.GetParameters(ctx, []string{"OPENAI_API_KEY", "TELEGRAM_BOT_TOKEN", "UNKNOWN", "NIL"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"OPENAI_API_KEY": "sk-1", "TELEGRAM_BOT_TOKEN": "123:abc"}, got)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "/dev/miniapp", client.paths[0])

	// cached after the first load
	got, err = store.GetParameters(ctx, []string{"OPENAI_BASE_URL"})
	require.NoError(t, err)
	assert.Equal(t, "https://api", got["OPENAI_BASE_URL"])
	assert.Equal(t, 2, client.calls)
}

func TestSSMParameterStore_APIError(t *testing.T) {
	client := &fakeSSM{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}}
	store := NewSSMParameterStore(client, "/dev/miniapp")

	_, err := store.GetParameters(context.Background(), []string{"A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDeniedException")

	var apiErr smithy.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestEnvParameterStore(t *testing.T) {
	t.Setenv("APISMOKE_TEST_SET", "  value  ")
	t.Setenv("APISMOKE_TEST_BLANK", "   ")

	got, err := NewEnvParameterStore().GetParameters(context.Background(), []string{"APISMOKE_TEST_SET", "APISMOKE_TEST_BLANK", "APISMOKE_TEST_UNSET"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"APISMOKE_TEST_SET": "value"}, got)
}

type fakeSecrets struct {
	value *string
	err   error
	calls int
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{Name: in.SecretId, SecretString: f.value}, nil
}

func TestSecretsManagerStore(t *testing.T) {
	ctx := context.Background()

	t.Run("reads json object once", func(t *testing.T) {
		client := &fakeSecrets{value: aws.String(`{"SUPABASE_SERVICE_ROLE_KEY":"service","OTHER":"x"}`)}
		store := NewSecretsManagerStore(client, "miniapp/dev/env")

		got, err := store.GetParameters(ctx, []string{"SUPABASE_SERVICE_ROLE_KEY", "MISSING"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"SUPABASE_SERVICE_ROLE_KEY": "service"}, got)

		_, err = store.GetParameters(ctx, []string{"OTHER"})
		require.NoError(t, err)
		assert.Equal(t, 1, client.calls)
	})

	t.Run("binary secret", func(t *testing.T) {
		store := NewSecretsManagerStore(&fakeSecrets{}, "miniapp/dev/env")
		_, err := store.GetParameters(ctx, []string{"A"})
		assert.ErrorContains(t, err, "has no string value")
	})

	t.Run("invalid json", func(t *testing.T) {
		store := NewSecretsManagerStore(&fakeSecrets{value: aws.String("nope")}, "miniapp/dev/env")
		_, err := store.GetParameters(ctx, []string{"A"})
		assert.ErrorContains(t, err, "failed to unmarshal secret")
	})

	t.Run("client error", func(t *testing.T) {
		store := NewSecretsManagerStore(&fakeSecrets{err: errors.New("offline")}, "miniapp/dev/env")
		_, err := store.GetParameters(ctx, []string{"A"})
		assert.ErrorContains(t, err, "offline")
	})
}
