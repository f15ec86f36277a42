package credentials

import (
	"context"
	"fmt"
	"sort"

	"github.com/goliatone/go-access-vault/pkg/domain"
	"github.com/goliatone/go-access-vault/pkg/interfaces/store"
)

// dashboardListLimit caps due_list and credentials_by_env.
const dashboardListLimit = 50

// Dashboard is the read-only aggregate shown on the landing page. Every figure
// only counts credentials the actor can view.
type Dashboard struct {
	Today            string    `json:"today"`
	Total            int       `json:"total"`
	TotalActive      int       `json:"total_active"`
	DueToday         int       `json:"due_today"`
	DueTomorrow      int       `json:"due_tomorrow"`
	DueList          []Summary `json:"due_list"`
	CredentialsByEnv []Summary `json:"credentials_by_env"`
}

// Dashboard computes the aggregate at the current time. Due figures only
// consider active credentials with a policy and at least one secret set.
func (s *Service) Dashboard(ctx context.Context, actor string) (*Dashboard, error) {
	now := s.now()
	all, err := s.visible(ctx, actor, store.CredentialFilter{Ordered: true})
	if err != nil {
		return nil, fmt.Errorf("credentials: dashboard: %w", err)
	}

	out := &Dashboard{
		Today:            now.In(s.loc).Format("2006-01-02"),
		Total:            len(all),
		DueList:          []Summary{},
		CredentialsByEnv: make([]Summary, 0, min(len(all), dashboardListLimit)),
	}

	var due []domain.Credential
	for _, c := range all {
		if c.State == domain.StateActive {
			out.TotalActive++
		}
		if len(out.CredentialsByEnv) < dashboardListLimit {
			out.CredentialsByEnv = append(out.CredentialsByEnv, summarize(c, now))
		}
		if c.State != domain.StateActive || c.RotationDays == 0 || !c.SecretSet {
			continue
		}
		status := c.RotationStatus(now)
		switch {
		case status.Due:
			out.DueToday++
			due = append(due, c)
		case status.DaysToRotation == 1:
			out.DueTomorrow++
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if a.Criticality.Rank() != b.Criticality.Rank() {
			return a.Criticality.Rank() > b.Criticality.Rank()
		}
		return a.Name < b.Name
	})
	for _, c := range due[:min(len(due), dashboardListLimit)] {
		out.DueList = append(out.DueList, summarize(c, now))
	}
	return out, nil
}
