package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-access-vault/internal/audit"
	"github.com/goliatone/go-access-vault/pkg/config"
	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/metrics"
	"github.com/goliatone/go-access-vault/pkg/interfaces/notify"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	pkgmetrics "github.com/goliatone/go-access-vault/pkg/metrics"
)

const (
	defaultBatchSize   = 200
	maxStampRetries    = 3
	noticeTitle        = "Access Vault"
	detailDay1Reminder = "Rotation reminder (D-1) sent"
	detailDueReminder  = "Rotation reminder (D0) sent"
)

var (
	errCredentialRepoRequired = errors.New("reminders: credential repository is required")
	errAuditRequired          = errors.New("reminders: audit service is required")
)

// Dependencies wires the reminder scheduler.
type Dependencies struct {
	Credentials store.CredentialRepository
	Audit       *audit.Service
	Notifier    notify.Notifier
	Logger      logger.Logger
	Metrics     metrics.Collector
	Config      config.RemindersConfig
}

// Service sends rotation reminders to credential owners. It is driven by an
// external periodic trigger and is safe to run more than once a day.
type Service struct {
	credentials store.CredentialRepository
	audit       *audit.Service
	notifier    notify.Notifier
	logger      logger.Logger
	metrics     metrics.Collector
	batchSize   int
	loc         *time.Location
}

// Result summarizes one reminder run.
type Result struct {
	Scanned     int `json:"scanned"`
	DueTomorrow int `json:"due_tomorrow"`
	Due         int `json:"due"`
	Suppressed  int `json:"suppressed"`
	Delivered   int `json:"delivered"`
	Failed      int `json:"failed"`
}

func NewService(deps Dependencies) (*Service, error) {
	if deps.Credentials == nil {
		return nil, errCredentialRepoRequired
	}
	if deps.Audit == nil {
		return nil, errAuditRequired
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	batch := deps.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Service{
		credentials: deps.Credentials,
		audit:       deps.Audit,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		batchSize:   batch,
		loc:         deps.Config.Loc(),
	}, nil
}

type reminder struct {
	kind   notify.Kind
	body   string
	urgent bool
	detail string
	stamp  func(*domain.Credential, time.Time)
}

// Run evaluates every active credential holding a secret at now. A
// credential gets at most one notice of each kind per calendar date in the
// configured location. Delivery failures are logged and never stop the batch.
func (s *Service) Run(ctx context.Context, now time.Time) (Result, error) {
	var (
		res   Result
		after *store.CredentialCursor
	)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := s.credentials.Find(ctx,
			store.CredentialFilter{State: domain.StateActive, SecretSet: true, Ordered: true, After: after},
			store.ListOptions{Limit: s.batchSize},
		)
		if err != nil {
			return res, fmt.Errorf("reminders: list credentials: %w", err)
		}
		if len(page.Items) == 0 {
			break
		}
		after = store.CursorAt(&page.Items[len(page.Items)-1])
		for i := range page.Items {
			s.process(ctx, &page.Items[i], now, &res)
		}
		if len(page.Items) < s.batchSize {
			break
		}
	}

	s.logger.Info("rotation reminders finished",
		logger.Field{Key: "scanned", Value: res.Scanned},
		logger.Field{Key: "due", Value: res.Due},
		logger.Field{Key: "due_tomorrow", Value: res.DueTomorrow},
		logger.Field{Key: "delivered", Value: res.Delivered},
		logger.Field{Key: "failed", Value: res.Failed},
	)
	return res, nil
}

func (s *Service) process(ctx context.Context, c *domain.Credential, now time.Time, res *Result) {
	if c.RotationDays == 0 {
		return
	}
	res.Scanned++

	r, watermark, ok := s.pick(c, now)
	if !ok {
		return
	}
	if sameDate(watermark, now, s.loc) {
		res.Suppressed++
		return
	}
	if r.kind == notify.KindRotationDue {
		res.Due++
	} else {
		res.DueTomorrow++
	}

	notice := notify.Notice{
		Kind:         r.kind,
		Title:        noticeTitle,
		Body:         r.body,
		Urgent:       r.urgent,
		CredentialID: c.ID.String(),
	}
	for _, owner := range c.Owners {
		if err := s.notifier.Notify(ctx, owner, notice); err != nil {
			res.Failed++
			s.metrics.Record(pkgmetrics.OpReminder, pkgmetrics.Result(pkgmetrics.ResultError))
			s.logger.Warn("rotation reminder delivery failed",
				logger.Field{Key: "credential_id", Value: c.ID.String()},
				logger.Field{Key: "recipient", Value: owner},
				logger.Err(err),
			)
			continue
		}
		res.Delivered++
		s.metrics.Record(pkgmetrics.OpReminder, nil)
	}

	stamped, err := s.stamp(ctx, c, now, r.stamp)
	if err != nil {
		s.logger.Error("rotation reminder watermark failed",
			logger.Field{Key: "credential_id", Value: c.ID.String()},
			logger.Err(err),
		)
		return
	}
	if !stamped {
		return
	}
	_, _ = s.audit.Record(ctx, audit.Entry{
		CredentialID: c.ID,
		Actor:        domain.SystemActor,
		Action:       domain.ActionUpdate,
		Detail:       r.detail,
		Metadata:     map[string]any{"kind": string(r.kind)},
	})
}

// pick returns the reminder due for c with the watermark that suppresses it.
// The due notice wins over the day-before notice.
func (s *Service) pick(c *domain.Credential, now time.Time) (reminder, time.Time, bool) {
	status := c.RotationStatus(now)
	switch {
	case status.Due || status.DaysToRotation <= 0:
		return reminder{
			kind:   notify.KindRotationDue,
			body:   fmt.Sprintf("Secret must be rotated TODAY: %s", c.Name),
			urgent: true,
			detail: detailDueReminder,
			stamp:  func(c *domain.Credential, at time.Time) { c.RotationReminderDueAt = at },
		}, c.RotationReminderDueAt, true
	case status.DaysToRotation == 1:
		return reminder{
			kind:   notify.KindRotationDueTomorrow,
			body:   fmt.Sprintf("Secret must be rotated TOMORROW: %s", c.Name),
			detail: detailDay1Reminder,
			stamp:  func(c *domain.Credential, at time.Time) { c.RotationReminderDay1At = at },
		}, c.RotationReminderDay1At, true
	}
	return reminder{}, time.Time{}, false
}

// stamp writes the watermark against the latest version of the row. It
// reports false when the credential was deleted in the meantime.
func (s *Service) stamp(ctx context.Context, c *domain.Credential, now time.Time, set func(*domain.Credential, time.Time)) (bool, error) {
	_, err := store.UpdateCredential(ctx, s.credentials, c.ID, maxStampRetries, func(fresh *domain.Credential) error {
		set(fresh, now.UTC())
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func sameDate(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
