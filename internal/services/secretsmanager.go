package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI is the subset of the Secrets Manager client the store needs
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerStore implements ParameterStore on top of a single secret whose
// string value is a JSON object of env keys to values.
type SecretsManagerStore struct {
	client   SecretsManagerAPI
	secretID string

	once   sync.Once
	values map[string]string
	err    error
}

func NewSecretsManagerStore(client SecretsManagerAPI, secretID string) *SecretsManagerStore {
	return &SecretsManagerStore{
		client:   client,
		secretID: secretID,
	}
}

func (s *SecretsManagerStore) GetParameters(ctx context.Context, names []string) (map[string]string, error) {
	s.once.Do(func() {
		s.values, s.err = s.fetch(ctx)
	})
	if s.err != nil {
		return nil, s.err
	}

	found := make(map[string]string, len(names))
	for _, name := range names {
		if value, ok := s.values[name]; ok {
			found[name] = value
		}
	}
	return found, nil
}

func (s *SecretsManagerStore) fetch(ctx context.Context) (map[string]string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", s.secretID, err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", s.secretID)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret %s: %w", s.secretID, err)
	}

	return values, nil
}
