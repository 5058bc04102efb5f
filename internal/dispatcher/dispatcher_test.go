package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/engine"
	"github.com/scbot-go/scbot/internal/ghapi"
	"github.com/scbot-go/scbot/internal/ghapi/fake"
	"github.com/scbot-go/scbot/internal/lock/memorylock"
	"github.com/scbot-go/scbot/internal/storage/memory"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *memory.Store, *fake.Client) {
	t.Helper()
	store := memory.New()
	api := fake.New("scbot-bot")
	locks := memorylock.New(nil)
	eng := engine.New(store, api, locks, time.Second, nil, domain.Repository{DefaultStrategy: domain.MergeStrategyMerge})
	d := New(store, api, eng, locks, time.Second, nil, nil)
	return d, store, api
}

func seedPR(t *testing.T, ctx context.Context, store *memory.Store, api *fake.Client, owner, name, author string, number uint64) {
	t.Helper()
	repo := domain.Repository{Owner: owner, Name: name, DefaultStrategy: domain.MergeStrategySquash, DefaultEnableChecks: true}
	require.NoError(t, store.CreateRepository(ctx, &repo))
	pr := domain.PullRequest{RepositoryID: repo.ID, Number: number, QaStatus: domain.QaSkipped, ChecksEnabled: true}
	require.NoError(t, store.CreatePullRequest(ctx, &pr))
	api.SeedPullRequest(owner, name, ghapi.PullRequest{
		Number: number, Title: "Add widgets", HeadSHA: "sha1", HeadRef: "feature", BaseRef: "main",
		Mergeable: true, Author: author,
	})
	api.SeedCheckSuites(owner, name, "sha1", []ghapi.CheckSuite{{Status: ghapi.CheckSuiteCompleted, Conclusion: ghapi.ConclusionSuccess}})
}

func TestHandleCommentPingRepliesAndReacts(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot ping")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "alice", "@scbot-bot ping"))

	assert.Len(t, api.Reactions, 1)
	assert.Equal(t, string(domain.ReactionEyes), api.Reactions[0].Kind)
}

func TestHandleCommentUnknownVerbRepliesConfused(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot frobnicate")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "alice", "@scbot-bot frobnicate"))

	assert.Len(t, api.Reactions, 1)
	assert.Equal(t, string(domain.ReactionConfused), api.Reactions[0].Kind)
}

func TestHandleCommentDeniesAdminVerbForNonAdmin(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot admin-sync")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "mallory", "@scbot-bot admin-sync"))

	assert.Len(t, api.Reactions, 1)
	assert.Equal(t, string(domain.ReactionMinusOne), api.Reactions[0].Kind)
}

func TestHandleCommentAllowsAdminVerbForAdmin(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	require.NoError(t, store.UpsertAccount(ctx, domain.Account{Username: "root", IsAdmin: true}))
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot admin-sync")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "root", "@scbot-bot admin-sync"))

	assert.Empty(t, api.Reactions)
}

func TestHandleCommentQAPlusSetsStatusAndReconciles(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot qa+")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "alice", "@scbot-bot qa+"))

	pr, err := store.GetPullRequest(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.QaPass, pr.QaStatus)

	labels, err := api.ListLabels(ctx, "o", "r", 1)
	require.NoError(t, err)
	assert.Contains(t, labels, string(domain.StepAwaitingMerge))
}

func TestHandleCommentPRAuthorMayRunUserVerbs(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot lock+ needs rework")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "alice", "@scbot-bot lock+ needs rework"))

	pr, err := store.GetPullRequest(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, pr.Locked)
	assert.Equal(t, "needs rework", pr.LockReason)
}

func TestHandleCommentDeniesUserVerbWithoutPermission(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot lock+")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "mallory", "@scbot-bot lock+"))

	pr, err := store.GetPullRequest(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, pr.Locked)
	assert.Len(t, api.Reactions, 1)
	assert.Equal(t, string(domain.ReactionMinusOne), api.Reactions[0].Kind)
}

func TestHandleCommentWriterMayRunUserVerbs(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	api.SetPermission("o", "r", "bob", true)
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot lock+")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "bob", "@scbot-bot lock+"))

	pr, err := store.GetPullRequest(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, pr.Locked)
}

func TestHandleCommentIgnoresLinesNotAddressedToBot(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	cid, err := api.CreateComment(ctx, "o", "r", 1, "just chatting, no mention here")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "alice", "just chatting, no mention here"))

	assert.Empty(t, api.Reactions)
}

func TestHandleCommentAdminSetNeededReviewers(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	require.NoError(t, store.UpsertAccount(ctx, domain.Account{Username: "root", IsAdmin: true}))
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot admin-set-needed-reviewers 3")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "root", "@scbot-bot admin-set-needed-reviewers 3"))

	repo, err := store.GetRepository(ctx, "o", "r")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), repo.DefaultNeededReviewersCount)
}

func TestHandleCommentAdminDisableDeniedWithoutManualInteraction(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	require.NoError(t, store.UpsertAccount(ctx, domain.Account{Username: "root", IsAdmin: true}))
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot admin-disable")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "root", "@scbot-bot admin-disable"))

	require.Len(t, api.Reactions, 1)
	assert.Equal(t, string(domain.ReactionMinusOne), api.Reactions[0].Kind)

	repo, err := store.GetRepository(ctx, "o", "r")
	require.NoError(t, err)
	pr, err := store.GetPullRequest(ctx, repo.ID, 1)
	require.NoError(t, err)
	assert.NotNil(t, pr)
}

func TestHandleCommentAdminDisableDisablesUnderManualInteraction(t *testing.T) {
	ctx := context.Background()
	d, store, api := newTestDispatcher(t)
	seedPR(t, ctx, store, api, "o", "r", "alice", 1)
	repo, err := store.GetRepository(ctx, "o", "r")
	require.NoError(t, err)
	repo.ManualInteraction = true
	require.NoError(t, store.UpdateRepository(ctx, repo))
	require.NoError(t, store.UpsertAccount(ctx, domain.Account{Username: "root", IsAdmin: true}))
	cid, err := api.CreateComment(ctx, "o", "r", 1, "@scbot-bot admin-disable")
	require.NoError(t, err)

	require.NoError(t, d.HandleComment(ctx, domain.Handle{Owner: "o", Name: "r", Number: 1}, "scbot-bot", cid, "root", "@scbot-bot admin-disable"))

	require.Len(t, api.Reactions, 1)
	assert.Equal(t, string(domain.ReactionEyes), api.Reactions[0].Kind)

	_, err = store.GetPullRequest(ctx, repo.ID, 1)
	assert.Error(t, err)
}
