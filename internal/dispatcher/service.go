package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-access-vault/pkg/adapters"
	"github.com/goliatone/go-access-vault/pkg/config"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/metrics"
	"github.com/goliatone/go-access-vault/pkg/interfaces/notify"
	pkgmetrics "github.com/goliatone/go-access-vault/pkg/metrics"
	"github.com/goliatone/go-access-vault/pkg/retry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Dependencies groups the collaborators required by the dispatcher.
type Dependencies struct {
	Registry *adapters.Registry
	Logger   logger.Logger
	Config   config.NotificationsConfig
	Metrics  metrics.Collector
	// Routes restricts delivery to the given channel routes (e.g. "email",
	// "chat:console"). Empty means every registered messenger.
	Routes []string
	// Retry overrides the backoff schedule; MaxAttempts always comes from Config.
	Retry *retry.Policy
}

// Service fans notices out to the registered adapters. Each send is bounded
// by a timeout and retried with backoff.
type Service struct {
	registry *adapters.Registry
	logger   logger.Logger
	cfg      config.NotificationsConfig
	metrics  metrics.Collector
	routes   []string
	policy   retry.Policy
}

var _ notify.Notifier = (*Service)(nil)

var (
	ErrMissingRegistry = errors.New("dispatcher: adapter registry is required")
	ErrNoMessengers    = errors.New("dispatcher: no messengers configured")
	ErrNoRecipient     = errors.New("dispatcher: recipient is required")
)

// New builds the dispatcher service.
func New(deps Dependencies) (*Service, error) {
	if deps.Registry == nil {
		return nil, ErrMissingRegistry
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Config.MaxWorkers <= 0 {
		deps.Config.MaxWorkers = 4
	}
	if deps.Config.MaxRetries <= 0 {
		deps.Config.MaxRetries = 3
	}
	if deps.Config.SendTimeout <= 0 {
		deps.Config.SendTimeout = 10 * time.Second
	}
	policy := retry.DefaultPolicy()
	if deps.Retry != nil {
		policy = *deps.Retry
	}
	policy.MaxAttempts = deps.Config.MaxRetries

	return &Service{
		registry: deps.Registry,
		logger:   deps.Logger,
		cfg:      deps.Config,
		metrics:  deps.Metrics,
		routes:   append([]string(nil), deps.Routes...),
		policy:   policy,
	}, nil
}

// Notify delivers notice to recipient through every target messenger. It
// returns the joined delivery errors; callers log them and move on.
func (s *Service) Notify(ctx context.Context, recipient string, notice notify.Notice) error {
	if recipient == "" {
		return ErrNoRecipient
	}
	targets, err := s.targets()
	if err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.SetLimit(min(s.cfg.MaxWorkers, len(targets)))

	var (
		mu   sync.Mutex
		errs []error
	)
	for _, messenger := range targets {
		msg := adapters.Message{
			ID:       uuid.NewString(),
			Channel:  firstChannel(messenger),
			Provider: messenger.Name(),
			Kind:     string(notice.Kind),
			Subject:  notice.Title,
			Body:     notice.Body,
			To:       recipient,
			Urgent:   notice.Urgent,
			Metadata: map[string]any{
				"credential_id": notice.CredentialID,
			},
		}
		g.Go(func() error {
			if err := s.deliverWithRetries(ctx, messenger, msg); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Broadcast sends notice to each recipient, continuing past failures.
func (s *Service) Broadcast(ctx context.Context, recipients []string, notice notify.Notice) error {
	var errs []error
	for _, recipient := range recipients {
		if err := s.Notify(ctx, recipient, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) targets() ([]adapters.Messenger, error) {
	if len(s.routes) == 0 {
		all := s.registry.All()
		if len(all) == 0 {
			return nil, ErrNoMessengers
		}
		return all, nil
	}
	seen := make(map[string]bool)
	var out []adapters.Messenger
	for _, route := range s.routes {
		m, err := s.registry.Route(route)
		if err != nil {
			return nil, fmt.Errorf("dispatcher: route %s: %w", route, err)
		}
		if seen[m.Name()] {
			continue
		}
		seen[m.Name()] = true
		out = append(out, m)
	}
	return out, nil
}

func (s *Service) deliverWithRetries(ctx context.Context, messenger adapters.Messenger, msg adapters.Message) error {
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		msg.Attempts++
		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		defer cancel()
		return messenger.Send(sendCtx, msg)
	}, func(attempt int, err error, wait time.Duration) {
		s.logger.Warn("delivery error",
			logger.Field{Key: "adapter", Value: messenger.Name()},
			logger.Field{Key: "kind", Value: msg.Kind},
			logger.Field{Key: "attempt", Value: attempt},
			logger.Field{Key: "retry_in", Value: wait.String()},
			logger.Err(err),
		)
	})
	if err != nil {
		s.metrics.Record(pkgmetrics.OpNotify, pkgmetrics.Result(pkgmetrics.ResultError))
		s.logger.Error("dispatcher delivery failed",
			logger.Field{Key: "adapter", Value: messenger.Name()},
			logger.Field{Key: "kind", Value: msg.Kind},
			logger.Field{Key: "to", Value: msg.To},
			logger.Err(err),
		)
		return fmt.Errorf("dispatcher: %s delivery failed: %w", messenger.Name(), err)
	}
	s.metrics.Record(pkgmetrics.OpNotify, nil)
	return nil
}

func firstChannel(m adapters.Messenger) string {
	if chans := m.Capabilities().Channels; len(chans) > 0 {
		return chans[0]
	}
	return ""
}
