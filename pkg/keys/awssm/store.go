// Package awssm stores vault parameters in AWS Secrets Manager.
package awssm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/goliatone/go-access-vault/pkg/interfaces/params"
)

// Client captures the Secrets Manager calls used by Store.
type Client interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// Config holds the Secrets Manager settings.
type Config struct {
	Region string
	// Prefix is prepended to parameter keys, e.g. "vault/".
	Prefix   string
	KMSKeyID string
}

// Store implements params.Store on top of Secrets Manager.
type Store struct {
	client Client
	cfg    Config
}

var _ params.Store = (*Store)(nil)

// New builds a Store around an existing client.
func New(client Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("awssm: client required")
	}
	return &Store{client: client, cfg: cfg}, nil
}

// NewFromConfig loads the default AWS credential chain.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("awssm: load aws config: %w", err)
	}
	return New(secretsmanager.NewFromConfig(awsCfg), cfg)
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.name(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("awssm: get %s: %w", key, err)
	}
	if out == nil || out.SecretString == nil {
		return "", false, nil
	}
	return aws.ToString(out.SecretString), true, nil
}

// Set writes a new secret version, creating the secret on first use.
func (s *Store) Set(ctx context.Context, key, value string) error {
	name := s.name(key)
	_, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("awssm: put %s: %w", key, err)
	}
	in := &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
		Description:  aws.String("access vault parameter"),
	}
	if s.cfg.KMSKeyID != "" {
		in.KmsKeyId = aws.String(s.cfg.KMSKeyID)
	}
	if _, err := s.client.CreateSecret(ctx, in); err != nil {
		return fmt.Errorf("awssm: create %s: %w", key, err)
	}
	return nil
}

func (s *Store) name(key string) string {
	if s.cfg.Prefix == "" {
		return key
	}
	return strings.TrimSuffix(s.cfg.Prefix, "/") + "/" + key
}

func isNotFound(err error) bool {
	var nf *types.ResourceNotFoundException
	return errors.As(err, &nf)
}
