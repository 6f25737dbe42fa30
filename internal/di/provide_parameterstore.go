package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/apismoke/internal/envfile"
	"github.com/savaki/apismoke/internal/services"
)

// ProvideParameterStores returns the fallback sources for required keys, in
// lookup order: process environment, then SSM Parameter Store and Secrets
// Manager when configured. AWS configuration is only loaded when one of the
// AWS sources is requested.
func ProvideParameterStores(ctx context.Context, settings Settings) ([]envfile.Source, error) {
	logger := zerolog.Ctx(ctx)

	sources := []envfile.Source{services.NewEnvParameterStore()}
	if settings.SSMPath == "" && settings.SecretID == "" {
		return sources, nil
	}

	awsConfig, err := ProvideAWSConfig(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if settings.SSMPath != "" {
		logger.Info().Str("path", settings.SSMPath).Msg("Using AWS Systems Manager Parameter Store for missing env keys")
		sources = append(sources, services.NewSSMParameterStore(ProvideSSMClient(awsConfig), settings.SSMPath))
	}
	if settings.SecretID != "" {
		logger.Info().Str("secret_id", settings.SecretID).Msg("Using AWS Secrets Manager for missing env keys")
		sources = append(sources, services.NewSecretsManagerStore(ProvideSecretsManagerClient(awsConfig), settings.SecretID))
	}

	return sources, nil
}

// ProvideRuntimeEnv loads the env file and fills required keys from the sources.
func ProvideRuntimeEnv(ctx context.Context, settings Settings, sources []envfile.Source) (RuntimeEnv, error) {
	logger := zerolog.Ctx(ctx)

	path := settings.EnvFilePath()
	values, err := envfile.Load(path)
	if err != nil {
		return nil, err
	}

	runtime, err := envfile.Resolve(ctx, values, envfile.RequiredKeys(settings.SkipAI), sources...)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("env_file", path).
		Int("keys", len(runtime)).
		Bool("skip_ai", settings.SkipAI).
		Msg("Configuration loaded successfully")

	return RuntimeEnv(runtime), nil
}
