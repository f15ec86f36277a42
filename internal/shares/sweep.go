package shares

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/logger"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	pkgmetrics "github.com/goliatone/go-access-vault/pkg/metrics"
)

// SweepResult summarizes one expiry run.
type SweepResult struct {
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sweep deactivates every active share whose expiry is at or before now and
// appends one share_expire entry per share it deactivated. Shares already
// deactivated by a concurrent run are skipped, so repeated runs are no-ops.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	now = now.UTC()
	failed := map[string]struct{}{}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch, err := s.shares.ListExpired(ctx, now, s.cfg.SweepBatchSize+len(failed))
		if err != nil {
			return res, fmt.Errorf("shares: list expired: %w", err)
		}

		progressed := false
		for i := range batch {
			share := &batch[i]
			if _, seen := failed[share.ID.String()]; seen {
				continue
			}
			switch ok, err := s.expire(ctx, share, now); {
			case err != nil:
				failed[share.ID.String()] = struct{}{}
				res.Failed++
				s.metrics.Record(pkgmetrics.OpShareExpire, pkgmetrics.Result(pkgmetrics.ResultError))
				s.logger.Error("share expiry failed",
					logger.Field{Key: "share_id", Value: share.ID.String()},
					logger.Err(err),
				)
			case ok:
				progressed = true
				res.Expired++
				s.metrics.Record(pkgmetrics.OpShareExpire, nil)
			default:
				progressed = true
				res.Skipped++
			}
		}
		if !progressed || len(batch) < s.cfg.SweepBatchSize+len(failed) {
			break
		}
	}

	if res.Expired > 0 || res.Failed > 0 {
		s.logger.Info("share sweep finished",
			logger.Field{Key: "expired", Value: res.Expired},
			logger.Field{Key: "skipped", Value: res.Skipped},
			logger.Field{Key: "failed", Value: res.Failed},
		)
	}
	return res, nil
}

// expire reports false when there was nothing left to log for the share. A
// share whose credential is gone is still deactivated but not logged.
func (s *Service) expire(ctx context.Context, share *domain.Share, now time.Time) (bool, error) {
	orphan := false
	if _, err := s.credentials.GetByID(ctx, share.CredentialID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return false, err
		}
		orphan = true
	}
	changed, err := s.shares.Deactivate(ctx, share.ID, now, domain.SystemActor)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil || !changed || orphan {
		return false, err
	}
	s.record(ctx, share, domain.SystemActor, domain.ActionShareExpire,
		fmt.Sprintf("Temporary access expired for %s", share.Grantee))
	return true, nil
}
