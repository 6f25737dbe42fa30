package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/smithy-go"
)

// ParameterStore resolves configuration values by key name
type ParameterStore interface {
	// GetParameters returns the values it knows for names; unknown names are omitted
	GetParameters(ctx context.Context, names []string) (map[string]string, error)
}

// SSMAPI is the subset of the SSM client the parameter store needs
type SSMAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store.
// A parameter named {path}/OPENAI_API_KEY answers the key OPENAI_API_KEY.
type SSMParameterStore struct {
	client SSMAPI
	path   string
	mu     sync.RWMutex
	cache  map[string]string
	loaded bool
}

// NewSSMParameterStore creates a new SSM-backed parameter store rooted at path
func NewSSMParameterStore(client SSMAPI, path string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		path:   "/" + strings.Trim(path, "/"),
		cache:  make(map[string]string),
	}
}

// GetParameters loads every parameter under the path once and answers from the cache
func (s *SSMParameterStore) GetParameters(ctx context.Context, names []string) (map[string]string, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]string, len(names))
	for _, name := range names {
		if value, ok := s.cache[name]; ok {
			found[name] = value
		}
	}
	return found, nil
}

func (s *SSMParameterStore) load(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	params := make(map[string]string)
	var nextToken *string
	for {
		result, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           aws.String(s.path),
			Recursive:      aws.Bool(true),
			WithDecryption: aws.Bool(true),
			NextToken:      nextToken,
		})
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) {
				return fmt.Errorf("failed to get parameters by path %s (%s): %w", s.path, apiErr.ErrorCode(), err)
			}
			return fmt.Errorf("failed to get parameters by path %s: %w", s.path, err)
		}

		for _, param := range result.Parameters {
			if param.Name == nil || param.Value == nil {
				continue
			}
			key := strings.TrimPrefix(aws.ToString(param.Name), s.path+"/")
			params[key] = aws.ToString(param.Value)
		}

		if result.NextToken == nil || aws.ToString(result.NextToken) == "" {
			break
		}
		nextToken = result.NextToken
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.loaded = true
	s.mu.Unlock()

	return nil
}

// EnvParameterStore implements ParameterStore using process environment variables
type EnvParameterStore struct{}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore() *EnvParameterStore {
	return &EnvParameterStore{}
}

// GetParameters returns the trimmed, non-empty environment values for names
func (e *EnvParameterStore) GetParameters(_ context.Context, names []string) (map[string]string, error) {
	found := make(map[string]string, len(names))
	for _, name := range names {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			found[name] = value
		}
	}
	return found, nil
}
