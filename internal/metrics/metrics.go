// Package metrics is the Prometheus surface spec.md §6 names:
// github_api_calls, tenor_api_calls, and lock_calls counters plus the
// standard process/Go collectors, served from GET /metrics. Grounded on
// cmd/hook's promhttp.Handler()-on-its-own-registry posture and
// cmd/exporter's prometheus.NewRegistry()+NewProcessCollector()+
// NewGoCollector() pattern in the teacher, combined into one registry
// here since this binary, unlike the teacher's, has a single process.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scbot-go/scbot/internal/lock"
)

// Metrics owns a private registry so tests can construct independent
// instances without colliding on prometheus' global DefaultRegisterer.
type Metrics struct {
	registry *prometheus.Registry

	githubAPICalls prometheus.Counter
	tenorAPICalls  prometheus.Counter
	webhookEvents  *prometheus.CounterVec
	lockCalls      *prometheus.CounterVec
}

// New registers every counter spec.md §6 names on a fresh registry,
// plus the standard process and Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		githubAPICalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "github_api_calls",
			Help: "Total number of upstream GitHub API calls issued.",
		}),
		tenorAPICalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenor_api_calls",
			Help: "Total number of upstream Tenor API calls issued.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events",
			Help: "Total number of accepted GitHub webhook deliveries, by event type.",
		}, []string{"event_type"}),
		lockCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lock_calls",
			Help: "Total number of lock.Service calls, by operation.",
		}, []string{"operation"}),
	}
	reg.MustRegister(
		m.githubAPICalls,
		m.tenorAPICalls,
		m.webhookEvents,
		m.lockCalls,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GitHubAPICalls satisfies ghclient.CallCounter.
func (m *Metrics) GitHubAPICalls() CallCounter { return counterAdapter{m.githubAPICalls} }

// TenorAPICalls satisfies tenor's counter dependency.
func (m *Metrics) TenorAPICalls() CallCounter { return counterAdapter{m.tenorAPICalls} }

// WebhookEvents satisfies webhook.WebhookCounter.
func (m *Metrics) WebhookEvents() WebhookCounter { return webhookCounterAdapter{m.webhookEvents} }

type webhookCounterAdapter struct {
	c *prometheus.CounterVec
}

func (a webhookCounterAdapter) Inc(eventType string) { a.c.WithLabelValues(eventType).Inc() }

// CallCounter mirrors ghclient.CallCounter / the tenor client's counter
// dependency, without either package importing this one.
type CallCounter interface {
	Inc()
}

type counterAdapter struct {
	c prometheus.Counter
}

func (a counterAdapter) Inc() { a.c.Inc() }

// WebhookCounter mirrors webhook.WebhookCounter.
type WebhookCounter interface {
	Inc(eventType string)
}

// LockService wraps a lock.Service, counting each call by operation
// name, so the lock port's production implementations (memorylock,
// redislock) stay metrics-agnostic.
func (m *Metrics) LockService(inner lock.Service) lock.Service {
	return &instrumentedLock{inner: inner, calls: m.lockCalls}
}

type instrumentedLock struct {
	inner lock.Service
	calls *prometheus.CounterVec
}

func (l *instrumentedLock) WaitLock(ctx context.Context, key string, timeout time.Duration) (lock.Lock, error) {
	l.calls.WithLabelValues("wait_lock").Inc()
	return l.inner.WaitLock(ctx, key, timeout)
}

func (l *instrumentedLock) Get(ctx context.Context, key string) (string, bool, error) {
	l.calls.WithLabelValues("get").Inc()
	return l.inner.Get(ctx, key)
}

func (l *instrumentedLock) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	l.calls.WithLabelValues("set").Inc()
	return l.inner.Set(ctx, key, value, ttl)
}

func (l *instrumentedLock) Delete(ctx context.Context, key string) error {
	l.calls.WithLabelValues("delete").Inc()
	return l.inner.Delete(ctx, key)
}

var _ lock.Service = (*instrumentedLock)(nil)
