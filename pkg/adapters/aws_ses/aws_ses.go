package aws_ses

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/goliatone/go-access-vault/pkg/adapters"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/retry"
)

// Adapter delivers notices by email via AWS SES.
type Adapter struct {
	name   string
	base   adapters.BaseAdapter
	caps   adapters.Capability
	cfg    Config
	client SESClient
}

// Config holds SES settings.
type Config struct {
	From             string
	Region           string
	Profile          string
	ConfigurationSet string
	// RecipientDomain is appended to recipients that are bare actor IDs.
	RecipientDomain string
	// SubjectPrefix is prepended to every subject, urgent notices get "[URGENT]" too.
	SubjectPrefix string
	DryRun        bool
}

type Option func(*Adapter)

// SESClient abstracts the SES client for testing.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// WithName overrides the adapter provider name.
func WithName(name string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(name) != "" {
			a.name = name
		}
	}
}

// WithConfig sets the adapter configuration.
func WithConfig(cfg Config) Option {
	return func(a *Adapter) {
		if cfg.Region == "" {
			cfg.Region = a.cfg.Region
		}
		a.cfg = cfg
	}
}

// WithClient injects a custom SES client.
func WithClient(c SESClient) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
	}
}

// New constructs the SES adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{
		name: "aws_ses",
		base: adapters.NewBaseAdapter(l),
		caps: adapters.Capability{
			Name:     "aws_ses",
			Channels: []string{"email"},
			Formats:  []string{"text/plain"},
		},
		cfg: Config{
			Region: "us-east-1",
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Capabilities() adapters.Capability { return a.caps }

func (a *Adapter) ensureClient(ctx context.Context) error {
	if a.client != nil {
		return nil
	}
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(a.cfg.Region),
	}
	if a.cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(a.cfg.Profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("aws_ses: load config: %w", err)
	}
	// Retries are owned by the dispatcher policy.
	a.client = ses.NewFromConfig(cfg, func(o *ses.Options) {
		o.RetryMaxAttempts = 1
	})
	return nil
}

func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	to := a.address(msg.To)
	subject := a.subject(msg)
	if a.cfg.DryRun {
		a.base.Logger().Info("[aws_ses:dry-run] send skipped",
			logger.Field{Key: "to", Value: to},
			logger.Field{Key: "subject", Value: subject},
		)
		return nil
	}

	if to == "" {
		return retry.Permanent(fmt.Errorf("aws_ses: destination required"))
	}
	from := adapters.FirstNonEmpty(adapters.MetaString(msg.Metadata, "from"), a.cfg.From)
	if strings.TrimSpace(from) == "" {
		return retry.Permanent(fmt.Errorf("aws_ses: from required"))
	}
	if strings.TrimSpace(msg.Body) == "" {
		return retry.Permanent(fmt.Errorf("aws_ses: content empty"))
	}

	if err := a.ensureClient(ctx); err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Source: aws.String(from),
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body)},
			},
		},
	}
	if cs := strings.TrimSpace(a.cfg.ConfigurationSet); cs != "" {
		input.ConfigurationSetName = aws.String(cs)
	}

	if _, err := a.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("aws_ses: send email: %w", err)
	}
	a.base.LogSuccess(a.name, msg)
	return nil
}

func (a *Adapter) address(to string) string {
	to = strings.TrimSpace(to)
	if to == "" || strings.Contains(to, "@") || a.cfg.RecipientDomain == "" {
		return to
	}
	return to + "@" + strings.TrimPrefix(a.cfg.RecipientDomain, "@")
}

func (a *Adapter) subject(msg adapters.Message) string {
	parts := make([]string, 0, 3)
	if p := strings.TrimSpace(a.cfg.SubjectPrefix); p != "" {
		parts = append(parts, p)
	}
	if msg.Urgent {
		parts = append(parts, "[URGENT]")
	}
	parts = append(parts, msg.Subject)
	return strings.Join(parts, " ")
}
