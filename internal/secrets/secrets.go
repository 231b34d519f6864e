// Package secrets resolves named secrets such as the Twilio credentials.
package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Resolver looks up a secret value by name
type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretsManagerAPI is the subset of the Secrets Manager client used here
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager resolves secrets from AWS Secrets Manager
type SecretsManager struct {
	client SecretsManagerAPI
}

// NewSecretsManager creates a resolver using the default AWS credential chain
func NewSecretsManager(ctx context.Context, region string) (*SecretsManager, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSecretsManagerWithClient(secretsmanager.NewFromConfig(awsCfg)), nil
}

// NewSecretsManagerWithClient wraps an existing client
func NewSecretsManagerWithClient(client SecretsManagerAPI) *SecretsManager {
	return &SecretsManager{client: client}
}

// GetSecret returns the SecretString of the named secret
func (s *SecretsManager) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}
	return *out.SecretString, nil
}

// Static resolves secrets from a fixed map, for local runs and tests
type Static map[string]string

func (s Static) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", fmt.Errorf("secret %s not found", name)
	}
	return v, nil
}

// ResolveAll resolves every name, returning values keyed by name.
// Empty names are skipped.
func ResolveAll(ctx context.Context, r Resolver, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, done := values[name]; done {
			continue
		}
		v, err := r.GetSecret(ctx, name)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}
	return values, nil
}
