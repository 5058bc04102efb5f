package mergestrategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/storage/memory"
)

func TestResolveDeepestMatchWins(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := domain.Repository{ID: 1, DefaultStrategy: domain.MergeStrategyMerge}

	require.NoError(t, store.SetMergeRule(ctx, domain.MergeRule{
		RepositoryID: 1, Base: domain.NamedBranch("main"), Head: domain.WildcardBranch(), Strategy: domain.MergeStrategySquash,
	}))
	require.NoError(t, store.SetMergeRule(ctx, domain.MergeRule{
		RepositoryID: 1, Base: domain.NamedBranch("main"), Head: domain.NamedBranch("feature/x"), Strategy: domain.MergeStrategyRebase,
	}))

	pr := domain.PullRequest{}

	strategy, err := Resolve(ctx, store, repo, pr, "main", "feature/x")
	require.NoError(t, err)
	assert.Equal(t, domain.MergeStrategyRebase, strategy)

	strategy, err = Resolve(ctx, store, repo, pr, "main", "feature/y")
	require.NoError(t, err)
	assert.Equal(t, domain.MergeStrategySquash, strategy)

	strategy, err = Resolve(ctx, store, repo, pr, "release", "feature/y")
	require.NoError(t, err)
	assert.Equal(t, domain.MergeStrategyMerge, strategy)
}

func TestResolvePROverrideWins(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := domain.Repository{ID: 1, DefaultStrategy: domain.MergeStrategyMerge}
	override := domain.MergeStrategySquash
	pr := domain.PullRequest{StrategyOverride: &override}

	strategy, err := Resolve(ctx, store, repo, pr, "main", "feature/x")
	require.NoError(t, err)
	assert.Equal(t, domain.MergeStrategySquash, strategy)
}
