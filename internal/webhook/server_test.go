package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbot-go/scbot/internal/dispatcher"
	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/engine"
	"github.com/scbot-go/scbot/internal/ghapi"
	"github.com/scbot-go/scbot/internal/ghapi/fake"
	"github.com/scbot-go/scbot/internal/lock/memorylock"
	"github.com/scbot-go/scbot/internal/storage/memory"
	"github.com/scbot-go/scbot/internal/workqueue"
)

func newTestServer(t *testing.T, secret string) (*Server, *memory.Store, *fake.Client) {
	t.Helper()
	store := memory.New()
	api := fake.New("scbot-bot")
	locks := memorylock.New(nil)
	eng := engine.New(store, api, locks, time.Second, nil, domain.Repository{
		DefaultStrategy: domain.MergeStrategyMerge, DefaultEnableChecks: true, DefaultEnableQA: false,
	})
	disp := dispatcher.New(store, api, eng, locks, time.Second, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q := workqueue.New(ctx, 1, 8, nil)
	s := New(eng, disp, store, api, q, "scbot-bot", secret, false, nil, nil)
	return s, store, api
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestHandleWebhookMissingEventHeaderReturns400(t *testing.T) {
	s, _, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhookMissingSignatureReturns401WhenSecretConfigured(t *testing.T) {
	s, _, _ := newTestServer(t, "sekrit")
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"zen":"hi"}`))
	req.Header.Set("X-GitHub-Event", "ping")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleWebhookBadSignatureReturns403(t *testing.T) {
	s, _, _ := newTestServer(t, "sekrit")
	body := `{"zen":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleWebhookPingReturns202(t *testing.T) {
	s, _, _ := newTestServer(t, "sekrit")
	body := []byte(`{"zen":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", sign("sekrit", body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleWebhookUnrecognizedEventReturns200(t *testing.T) {
	s, _, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	req.Header.Set("X-GitHub-Event", "deployment")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOnPullRequestOpenedSeedsRowAndPostsWelcomeComment(t *testing.T) {
	ctx := context.Background()
	s, store, api := newTestServer(t, "")
	api.SeedPullRequest("o", "r", ghapi.PullRequest{
		Number: 7, Title: "Add widgets", HeadSHA: "sha1", HeadRef: "feature", BaseRef: "main", Mergeable: true,
	})
	api.SeedCheckSuites("o", "r", "sha1", []ghapi.CheckSuite{{Status: ghapi.CheckSuiteCompleted, Conclusion: ghapi.ConclusionSuccess}})

	handle := domain.Handle{Owner: "o", Name: "r", Number: 7}
	s.onPullRequestOpened(ctx, handle)

	repo, err := store.GetRepository(ctx, "o", "r")
	require.NoError(t, err)
	pr, err := store.GetPullRequest(ctx, repo.ID, 7)
	require.NoError(t, err)
	assert.NotZero(t, pr.RepositoryID)

	assert.Equal(t, 2, totalComments(api)) // welcome comment + summary comment
}

func TestOnPullRequestOpenedDoesNotRepostWelcomeOnReopen(t *testing.T) {
	ctx := context.Background()
	s, store, api := newTestServer(t, "")
	repo := domain.Repository{Owner: "o", Name: "r"}
	require.NoError(t, store.CreateRepository(ctx, &repo))
	pr := domain.PullRequest{RepositoryID: repo.ID, Number: 7, QaStatus: domain.QaSkipped}
	require.NoError(t, store.CreatePullRequest(ctx, &pr))
	api.SeedPullRequest("o", "r", ghapi.PullRequest{
		Number: 7, Title: "Add widgets", HeadSHA: "sha1", HeadRef: "feature", BaseRef: "main", Mergeable: true,
	})
	api.SeedCheckSuites("o", "r", "sha1", []ghapi.CheckSuite{{Status: ghapi.CheckSuiteCompleted, Conclusion: ghapi.ConclusionSuccess}})

	s.onPullRequestOpened(ctx, domain.Handle{Owner: "o", Name: "r", Number: 7})

	assert.Equal(t, 1, totalComments(api)) // only the summary comment, no welcome repost
}

func totalComments(api *fake.Client) int {
	n := 0
	for _, list := range api.Comments {
		n += len(list)
	}
	return n
}

func TestBuildTaskIssueCommentDispatchesToDispatcher(t *testing.T) {
	ctx := context.Background()
	s, store, api := newTestServer(t, "")
	repo := domain.Repository{Owner: "o", Name: "r", DefaultEnableChecks: true}
	require.NoError(t, store.CreateRepository(ctx, &repo))
	pr := domain.PullRequest{RepositoryID: repo.ID, Number: 3, QaStatus: domain.QaSkipped, ChecksEnabled: true}
	require.NoError(t, store.CreatePullRequest(ctx, &pr))
	api.SeedPullRequest("o", "r", ghapi.PullRequest{Number: 3, Title: "t", HeadSHA: "sha1", HeadRef: "f", BaseRef: "main", Mergeable: true, Author: "alice"})
	api.SeedCheckSuites("o", "r", "sha1", []ghapi.CheckSuite{{Status: ghapi.CheckSuiteCompleted, Conclusion: ghapi.ConclusionSuccess}})
	cid, err := api.CreateComment(ctx, "o", "r", 3, "@scbot-bot ping")
	require.NoError(t, err)

	body := []byte(`{"action":"created","repository":{"owner":{"login":"o"},"name":"r"},
		"comment":{"id":` + itoa(cid) + `,"body":"@scbot-bot ping","user":{"login":"alice"}},
		"issue":{"number":3,"pull_request":{"url":"x"}}}`)

	task, err := s.buildTask("issue_comment", body)
	require.NoError(t, err)
	require.NotNil(t, task)
	task(ctx)

	assert.Len(t, api.Reactions, 1)
	assert.Equal(t, string(domain.ReactionEyes), api.Reactions[0].Kind)
}

func TestBuildTaskUnknownPRSkipsReconcile(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestServer(t, "")
	repo := domain.Repository{Owner: "o", Name: "r"}
	require.NoError(t, store.CreateRepository(ctx, &repo))

	body := []byte(`{"action":"synchronize","repository":{"owner":{"login":"o"},"name":"r"},"pull_request":{"number":99}}`)
	task, err := s.buildTask("pull_request", body)
	require.NoError(t, err)
	require.NotNil(t, task)
	task(ctx) // must not panic even though the PR row does not exist
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
