package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbot-go/scbot/internal/lock/memorylock"
)

func TestHandlerServesRegisteredCounters(t *testing.T) {
	m := New()
	m.GitHubAPICalls().Inc()
	m.WebhookEvents().Inc("pull_request")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "github_api_calls 1")
	assert.Contains(t, body, `webhook_events{event_type="pull_request"} 1`)
}

func TestLockServiceCountsEachOperation(t *testing.T) {
	m := New()
	svc := m.LockService(memorylock.New(nil))
	ctx := context.Background()

	l, err := svc.WaitLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx))
	require.NoError(t, svc.Set(ctx, "k", "v", time.Second))
	_, _, err = svc.Get(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "k"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, op := range []string{"wait_lock", "get", "set", "delete"} {
		assert.True(t, strings.Contains(body, `lock_calls{operation="`+op+`"} 1`), "missing counter for %s", op)
	}
}
