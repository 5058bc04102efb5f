package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/storage"
)

func TestRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	repo := &domain.Repository{Owner: "o", Name: "r", DefaultStrategy: domain.MergeStrategyMerge}
	require.NoError(t, s.CreateRepository(ctx, repo))
	assert.NotZero(t, repo.ID)

	got, err := s.GetRepository(ctx, "o", "r")
	require.NoError(t, err)
	assert.Equal(t, repo.ID, got.ID)

	got.DefaultAutomerge = true
	require.NoError(t, s.UpdateRepository(ctx, got))

	got2, err := s.GetRepositoryByID(ctx, repo.ID)
	require.NoError(t, err)
	assert.True(t, got2.DefaultAutomerge)

	require.NoError(t, s.DeleteRepository(ctx, repo.ID))
	_, err = s.GetRepository(ctx, "o", "r")
	assert.True(t, storage.IsNotFound(err))
}

func TestPullRequestCascadeOnRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	repo := &domain.Repository{Owner: "o", Name: "r"}
	require.NoError(t, s.CreateRepository(ctx, repo))

	pr := &domain.PullRequest{RepositoryID: repo.ID, Number: 7}
	require.NoError(t, s.CreatePullRequest(ctx, pr))
	require.NoError(t, s.AddRequiredReviewer(ctx, pr.ID, "alice"))

	require.NoError(t, s.DeleteRepository(ctx, repo.ID))

	_, err := s.GetPullRequest(ctx, repo.ID, 7)
	assert.True(t, storage.IsNotFound(err))

	reviewers, err := s.ListRequiredReviewers(ctx, pr.ID)
	require.NoError(t, err)
	assert.Empty(t, reviewers)
}

func TestExternalAccountRights(t *testing.T) {
	ctx := context.Background()
	s := New()

	repo := &domain.Repository{Owner: "o", Name: "r"}
	require.NoError(t, s.CreateRepository(ctx, repo))
	require.NoError(t, s.CreateExternalAccount(ctx, domain.ExternalAccount{Username: "ext"}))

	ok, err := s.HasRight(ctx, "ext", repo.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.GrantRight(ctx, "ext", repo.ID))
	ok, err = s.HasRight(ctx, "ext", repo.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.RevokeRight(ctx, "ext", repo.ID))
	ok, err = s.HasRight(ctx, "ext", repo.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
