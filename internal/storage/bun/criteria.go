package bunrepo

import (
	"time"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const day = 24 * time.Hour

func withID(id uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id)
	}
}

func withCredential(id uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("credential_id = ?", id)
	}
}

func withTimeRange(field string, since, until time.Time) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if !since.IsZero() {
			q = q.Where("? >= ?", bun.Ident(field), since)
		}
		if !until.IsZero() {
			q = q.Where("? <= ?", bun.Ident(field), until)
		}
		return q
	}
}

func withPage(opts store.ListOptions) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if opts.Limit > 0 {
			q = q.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			q = q.Offset(opts.Offset)
		}
		return q
	}
}

// withListOptions pages and filters on created_at. Callers that need another
// order add it before this criteria.
func withListOptions(opts store.ListOptions) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		q = withPage(opts)(q)
		q = withTimeRange("created_at", opts.Since, opts.Until)(q)
		return q.Order("created_at ASC")
	}
}

// withRotationDue is the stored-field form of Credential.RotationDueAt: one
// disjunct per accepted policy value.
func withRotationDue(now time.Time) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("state = ?", domain.StateActive)
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, days := range domain.RotationPolicies {
				cutoff := now.UTC().Add(-time.Duration(days) * day)
				q = q.WhereOr("rotation_days = ? AND (last_rotation_at IS NULL OR last_rotation_at <= ?)", days, cutoff)
			}
			return q
		})
	}
}

func withCredentialFilter(f store.CredentialFilter) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if f.Environment != "" {
			q = q.Where("environment = ?", f.Environment)
		}
		if f.State != "" {
			q = q.Where("state = ?", f.State)
		}
		if f.SecretSet {
			q = q.Where("secret_set = ?", true)
		}
		if !f.RotationDueAt.IsZero() {
			q = withRotationDue(f.RotationDueAt)(q)
		}
		if c := f.After; c != nil {
			rank := c.Criticality.Rank()
			q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("environment > ?", c.Environment).
					WhereOr("environment = ? AND "+criticalityRank+" < ?", c.Environment, rank).
					WhereOr("environment = ? AND "+criticalityRank+" = ? AND name > ?", c.Environment, rank, c.Name).
					WhereOr("environment = ? AND "+criticalityRank+" = ? AND name = ? AND id > ?", c.Environment, rank, c.Name, c.ID)
			})
		}
		if f.Ordered || f.After != nil {
			q = q.Order("environment ASC").
				OrderExpr(criticalityRank + " DESC").
				Order("name ASC", "id ASC")
		}
		return q
	}
}

// criticalityRank mirrors domain.Criticality.Rank.
const criticalityRank = "CASE criticality WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END"
