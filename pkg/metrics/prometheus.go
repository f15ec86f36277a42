package metrics

import (
	"errors"

	"github.com/goliatone/go-access-vault/pkg/interfaces/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Operation names recorded by the vault services.
const (
	OpCreate      = "credential_create"
	OpUpdate      = "credential_update"
	OpDelete      = "credential_delete"
	OpSetSecret   = "secret_set"
	OpDisclose    = "disclose"
	OpShareGrant  = "share_grant"
	OpShareRevoke = "share_revoke"
	OpShareExpire = "share_expire"
	OpReminder    = "reminder"
	OpNotify      = "notify"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDenied  = "denied"
	ResultLimited = "rate_limited"
)

const (
	labelResult      = "result"
	defaultNamespace = "vault"
)

// Collector implements metrics.Collector on prometheus counters.
type Collector struct {
	operations  *prometheus.CounterVec
	rateLimited prometheus.Counter
}

var _ metrics.Collector = (*Collector)(nil)

// New registers the vault counters on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Vault operations by name and result.",
		}, []string{"operation", labelResult}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disclosures_rate_limited_total",
			Help:      "Disclosures rejected by the rate limiter.",
		}),
	}
	ops, err := register(reg, c.operations)
	if err != nil {
		return nil, err
	}
	limited, err := register(reg, c.rateLimited)
	if err != nil {
		return nil, err
	}
	c.operations, c.rateLimited = ops, limited
	return c, nil
}

// Record increments operations_total. The result label defaults to "ok".
func (c *Collector) Record(operation string, labels map[string]string) {
	if c == nil || operation == "" {
		return
	}
	result := labels[labelResult]
	if result == "" {
		result = ResultOK
	}
	c.operations.WithLabelValues(operation, result).Inc()
	if operation == OpDisclose && result == ResultLimited {
		c.rateLimited.Inc()
	}
}

// Result is a helper for the common single-label call.
func Result(result string) map[string]string {
	return map[string]string{labelResult: result}
}

// register returns the already registered collector when one exists so that
// repeated construction shares the same series.
func register[C prometheus.Collector](reg prometheus.Registerer, col C) (C, error) {
	if err := reg.Register(col); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return col, nil
}
