package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"project-service/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
)

const (
	// jsonSecretKey is read when the stored secret is a JSON object rather
	// than the raw key.
	jsonSecretKey = "jwt_secret"

	errFailedCreateAWSSessionFmt = "failed to create AWS session: %w"
	errFailedGetSecretFmt        = "failed to read secret %s: %w"
	errInvalidSecretFmt          = "secret %s: %w"
)

var errEmptySecret = errors.New("secret has no value")

// Store reads signing material from AWS Secrets Manager.
type Store struct {
	svc secretsmanageriface.SecretsManagerAPI
}

// NewStore builds a client for region using the default AWS credential chain.
func NewStore(cfg *config.AWSConfig) (*Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf(errFailedCreateAWSSessionFmt, err)
	}
	return NewStoreWithClient(secretsmanager.New(sess)), nil
}

func NewStoreWithClient(svc secretsmanageriface.SecretsManagerAPI) *Store {
	return &Store{svc: svc}
}

// JWTSecret fetches the secret identified by arn. The value is either the raw
// key or a JSON object holding it under "jwt_secret".
func (s *Store) JWTSecret(ctx context.Context, arn string) (string, error) {
	out, err := s.svc.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(arn),
	})
	if err != nil {
		return "", fmt.Errorf(errFailedGetSecretFmt, arn, err)
	}

	var raw string
	switch {
	case out.SecretString != nil:
		raw = *out.SecretString
	case len(out.SecretBinary) > 0:
		raw = string(out.SecretBinary)
	}
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") {
		var doc map[string]string
		if err := json.Unmarshal([]byte(raw), &doc); err == nil {
			raw = doc[jsonSecretKey]
		}
	}
	if raw == "" {
		return "", fmt.Errorf(errInvalidSecretFmt, arn, errEmptySecret)
	}
	if err := config.ValidateJWTSecret(raw); err != nil {
		return "", fmt.Errorf(errInvalidSecretFmt, arn, err)
	}
	return raw, nil
}

// ResolveJWTSecret fills cfg.JWT.Secret from Secrets Manager when only an ARN
// is configured. A secret set directly in the environment wins.
func ResolveJWTSecret(ctx context.Context, cfg *config.Config, store *Store) error {
	if cfg.JWT.Secret != "" || cfg.JWT.SecretARN == "" {
		return nil
	}
	secret, err := store.JWTSecret(ctx, cfg.JWT.SecretARN)
	if err != nil {
		return err
	}
	cfg.JWT.Secret = secret
	return nil
}
