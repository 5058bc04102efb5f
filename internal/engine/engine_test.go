package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/ghapi"
	"github.com/scbot-go/scbot/internal/ghapi/fake"
	"github.com/scbot-go/scbot/internal/lock/memorylock"
	"github.com/scbot-go/scbot/internal/storage/memory"
)

func newTestEngine(t *testing.T) (*Engine, *memory.Store, *fake.Client) {
	t.Helper()
	store := memory.New()
	api := fake.New("scbot-bot")
	locks := memorylock.New(nil)
	return New(store, api, locks, time.Second, nil, domain.Repository{
		DefaultStrategy:             domain.MergeStrategyMerge,
		DefaultNeededReviewersCount: 1,
		DefaultEnableChecks:         true,
		DefaultEnableQA:             false,
	}), store, api
}

func seedReadyPR(t *testing.T, ctx context.Context, store *memory.Store, api *fake.Client, owner, name string, number uint64) {
	t.Helper()
	repo := domain.Repository{Owner: owner, Name: name, DefaultStrategy: domain.MergeStrategySquash, DefaultEnableChecks: true}
	require.NoError(t, store.CreateRepository(ctx, &repo))

	pr := domain.PullRequest{RepositoryID: repo.ID, Number: number, QaStatus: domain.QaSkipped, ChecksEnabled: true}
	require.NoError(t, store.CreatePullRequest(ctx, &pr))

	api.SeedPullRequest(owner, name, ghapi.PullRequest{
		Number: number, Title: "Add widgets", HeadSHA: "sha1", HeadRef: "feature", BaseRef: "main",
		Mergeable: true,
	})
	api.SeedCheckSuites(owner, name, "sha1", []ghapi.CheckSuite{{Status: ghapi.CheckSuiteCompleted, Conclusion: ghapi.ConclusionSuccess}})
}

func TestUpdateStatusAppliesAwaitingMergeLabelWhenClean(t *testing.T) {
	ctx := context.Background()
	eng, store, api := newTestEngine(t)
	seedReadyPR(t, ctx, store, api, "o", "r", 1)

	require.NoError(t, eng.UpdateStatus(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}))

	labels, err := api.ListLabels(ctx, "o", "r", 1)
	require.NoError(t, err)
	assert.Contains(t, labels, string(domain.StepAwaitingMerge))
	assert.Len(t, labels, 1)

	status, err := api.GetLastStatus(ctx, "o", "r", "sha1", domain.ValidationContext)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, string(domain.CommitStatusSuccess), status.State)
}

func TestUpdateStatusCreatesExactlyOneSummaryComment(t *testing.T) {
	ctx := context.Background()
	eng, store, api := newTestEngine(t)
	seedReadyPR(t, ctx, store, api, "o", "r", 1)
	handle := domain.Handle{Owner: "o", Name: "r", Number: 1}

	require.NoError(t, eng.UpdateStatus(ctx, handle))
	require.NoError(t, eng.UpdateStatus(ctx, handle))
	require.NoError(t, eng.UpdateStatus(ctx, handle))

	pr, err := store.GetPullRequest(ctx, 1, 1)
	require.NoError(t, err)
	assert.NotZero(t, pr.StatusCommentID)
}

func TestUpdateStatusIsIdempotentOnCommitStatusWrites(t *testing.T) {
	ctx := context.Background()
	eng, store, api := newTestEngine(t)
	seedReadyPR(t, ctx, store, api, "o", "r", 1)
	handle := domain.Handle{Owner: "o", Name: "r", Number: 1}

	require.NoError(t, eng.UpdateStatus(ctx, handle))
	before, err := api.GetLastStatus(ctx, "o", "r", "sha1", domain.ValidationContext)
	require.NoError(t, err)

	require.NoError(t, eng.UpdateStatus(ctx, handle))
	after, err := api.GetLastStatus(ctx, "o", "r", "sha1", domain.ValidationContext)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestUpdateStatusWaitingOnChecks(t *testing.T) {
	ctx := context.Background()
	eng, store, api := newTestEngine(t)
	seedReadyPR(t, ctx, store, api, "o", "r", 1)
	api.SeedCheckSuites("o", "r", "sha1", []ghapi.CheckSuite{{Status: ghapi.CheckSuiteInProgress}})

	require.NoError(t, eng.UpdateStatus(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}))

	labels, err := api.ListLabels(ctx, "o", "r", 1)
	require.NoError(t, err)
	assert.Contains(t, labels, string(domain.StepAwaitingChecks))
}

func TestUpdateStatusAutomergeInvokesMergeWithResolvedStrategy(t *testing.T) {
	ctx := context.Background()
	eng, store, api := newTestEngine(t)
	repo := domain.Repository{Owner: "o", Name: "r", DefaultStrategy: domain.MergeStrategyRebase, DefaultEnableChecks: true}
	require.NoError(t, store.CreateRepository(ctx, &repo))
	pr := domain.PullRequest{RepositoryID: repo.ID, Number: 1, QaStatus: domain.QaSkipped, ChecksEnabled: true, Automerge: true}
	require.NoError(t, store.CreatePullRequest(ctx, &pr))
	api.SeedPullRequest("o", "r", ghapi.PullRequest{Number: 1, Title: "Add widgets", HeadSHA: "sha1", HeadRef: "feature", BaseRef: "main", Mergeable: true})
	api.SeedCheckSuites("o", "r", "sha1", []ghapi.CheckSuite{{Status: ghapi.CheckSuiteCompleted, Conclusion: ghapi.ConclusionSuccess}})

	require.NoError(t, eng.UpdateStatus(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}))

	require.Len(t, api.MergeCalls, 1)
	assert.Equal(t, string(domain.MergeStrategyRebase), api.MergeCalls[0].Strategy)
}

func TestUpdateStatusUnknownPullRequestIsNoop(t *testing.T) {
	ctx := context.Background()
	eng, store, _ := newTestEngine(t)
	repo := domain.Repository{Owner: "o", Name: "r"}
	require.NoError(t, store.CreateRepository(ctx, &repo))

	err := eng.UpdateStatus(ctx, domain.Handle{Owner: "o", Name: "r", Number: 99})
	assert.NoError(t, err)
}

func TestUpdateStatusTimesOutQuietlyWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	eng, store, api := newTestEngine(t)
	seedReadyPR(t, ctx, store, api, "o", "r", 1)
	handle := domain.Handle{Owner: "o", Name: "r", Number: 1}

	held, err := eng.Locks.WaitLock(ctx, handle.LockKey(), time.Second)
	require.NoError(t, err)
	defer held.Release(ctx)

	eng.LockTimeout = 20 * time.Millisecond
	assert.NoError(t, eng.UpdateStatus(ctx, handle))
}

func TestSynchronizeSeedsUnknownRepoAndPR(t *testing.T) {
	ctx := context.Background()
	eng, store, api := newTestEngine(t)
	api.SeedPullRequest("o", "r", ghapi.PullRequest{Number: 1, Title: "Add widgets", HeadSHA: "sha1", HeadRef: "feature", BaseRef: "main", Mergeable: true})
	api.SeedCheckSuites("o", "r", "sha1", []ghapi.CheckSuite{{Status: ghapi.CheckSuiteCompleted, Conclusion: ghapi.ConclusionSuccess}})

	require.NoError(t, eng.Synchronize(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}))

	repo, err := store.GetRepository(ctx, "o", "r")
	require.NoError(t, err)
	pr, err := store.GetPullRequest(ctx, repo.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.QaSkipped, pr.QaStatus)
}

func TestDisableWritesSuccessStatusAndDeletesComment(t *testing.T) {
	ctx := context.Background()
	eng, _, api := newTestEngine(t)
	id, err := api.CreateComment(ctx, "o", "r", 1, "old summary")
	require.NoError(t, err)

	require.NoError(t, eng.Disable(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "sha1", id))

	status, err := api.GetLastStatus(ctx, "o", "r", "sha1", domain.ValidationContext)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, string(domain.CommitStatusSuccess), status.State)
	assert.Equal(t, "Bot disabled.", status.Description)

	err = api.UpdateComment(ctx, "o", "r", id, "x")
	assert.ErrorIs(t, err, ghapi.ErrCommentNotFound)
}
