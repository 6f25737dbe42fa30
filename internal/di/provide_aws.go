package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ProvideAWSConfig loads the default AWS configuration, honoring --aws-profile
// and --aws-region when set.
func ProvideAWSConfig(ctx context.Context, settings Settings) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if settings.AWSProfile != "" {
		opts = append(opts, config.WithSharedConfigProfile(settings.AWSProfile))
	}
	if settings.AWSRegion != "" {
		opts = append(opts, config.WithRegion(settings.AWSRegion))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

// ProvideSSMClient provides an SSM client for Parameter Store access
func ProvideSSMClient(awsConfig aws.Config) *ssm.Client {
	return ssm.NewFromConfig(awsConfig)
}

// ProvideSecretsManagerClient provides a Secrets Manager client
func ProvideSecretsManagerClient(awsConfig aws.Config) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(awsConfig)
}
