// Package mergestrategy implements C12: resolving the merge method for a
// given (base, head) pair.
package mergestrategy

import (
	"context"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/storage"
)

// Resolve implements spec.md §4.6's resolution order:
//  1. the PR's strategy override, if set
//  2. the exact (Named(base), Named(head)) rule
//  3. the (Named(base), Wildcard) rule
//  4. the (Wildcard, Named(head)) rule
//  5. the repository's default strategy
func Resolve(ctx context.Context, rules storage.MergeRuleStore, repo domain.Repository, pr domain.PullRequest, base, head string) (domain.MergeStrategy, error) {
	if pr.StrategyOverride != nil {
		return *pr.StrategyOverride, nil
	}

	candidates := []struct {
		base, head domain.RuleBranch
	}{
		{domain.NamedBranch(base), domain.NamedBranch(head)},
		{domain.NamedBranch(base), domain.WildcardBranch()},
		{domain.WildcardBranch(), domain.NamedBranch(head)},
	}
	for _, c := range candidates {
		rule, err := rules.GetMergeRule(ctx, repo.ID, c.base, c.head)
		if err == nil {
			return rule.Strategy, nil
		}
		if !storage.IsNotFound(err) {
			return "", err
		}
	}
	return repo.DefaultStrategy, nil
}
