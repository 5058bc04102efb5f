// Package storage defines the persistence contract (C2) the engine,
// dispatcher and auth use-cases depend on. Two implementations live
// under storage/memory (tests, the CLI's debug mode) and
// storage/postgres (production), composed the way harness-Harness's
// store.Store embeds one interface per entity.
package storage

import (
	"context"

	"github.com/scbot-go/scbot/internal/domain"
)

// RepositoryStore is the persistence contract for Repository rows.
type RepositoryStore interface {
	GetRepository(ctx context.Context, owner, name string) (*domain.Repository, error)
	GetRepositoryByID(ctx context.Context, id uint64) (*domain.Repository, error)
	CreateRepository(ctx context.Context, repo *domain.Repository) error
	UpdateRepository(ctx context.Context, repo *domain.Repository) error
	DeleteRepository(ctx context.Context, id uint64) error
	ListRepositories(ctx context.Context) ([]domain.Repository, error)
}

// PullRequestStore is the persistence contract for PullRequest rows.
type PullRequestStore interface {
	GetPullRequest(ctx context.Context, repositoryID uint64, number uint64) (*domain.PullRequest, error)
	CreatePullRequest(ctx context.Context, pr *domain.PullRequest) error
	UpdatePullRequest(ctx context.Context, pr *domain.PullRequest) error
	DeletePullRequest(ctx context.Context, id uint64) error
	ListOpenPullRequests(ctx context.Context, repositoryID uint64) ([]domain.PullRequest, error)
	ListAllPullRequests(ctx context.Context) ([]domain.PullRequest, error)
}

// MergeRuleStore is the persistence contract for MergeRule rows.
type MergeRuleStore interface {
	GetMergeRule(ctx context.Context, repositoryID uint64, base, head domain.RuleBranch) (*domain.MergeRule, error)
	SetMergeRule(ctx context.Context, rule domain.MergeRule) error
	DeleteMergeRule(ctx context.Context, repositoryID uint64, base, head domain.RuleBranch) error
	ListMergeRules(ctx context.Context, repositoryID uint64) ([]domain.MergeRule, error)
}

// RequiredReviewerStore is the persistence contract for the required
// reviewer set of a PR.
type RequiredReviewerStore interface {
	AddRequiredReviewer(ctx context.Context, pullRequestID uint64, username string) error
	RemoveRequiredReviewer(ctx context.Context, pullRequestID uint64, username string) error
	ListRequiredReviewers(ctx context.Context, pullRequestID uint64) ([]string, error)
}

// AccountStore is the persistence contract for human Account rows.
type AccountStore interface {
	GetAccount(ctx context.Context, username string) (*domain.Account, error)
	UpsertAccount(ctx context.Context, account domain.Account) error
	DeleteAccount(ctx context.Context, username string) error
	ListAccounts(ctx context.Context, adminOnly bool) ([]domain.Account, error)
}

// ExternalAccountStore is the persistence contract for ExternalAccount rows.
type ExternalAccountStore interface {
	GetExternalAccount(ctx context.Context, username string) (*domain.ExternalAccount, error)
	CreateExternalAccount(ctx context.Context, account domain.ExternalAccount) error
	DeleteExternalAccount(ctx context.Context, username string) error
	ListExternalAccounts(ctx context.Context) ([]domain.ExternalAccount, error)
}

// ExternalAccountRightStore is the persistence contract for the
// many-to-many ExternalAccount<->Repository edge.
type ExternalAccountRightStore interface {
	GrantRight(ctx context.Context, username string, repositoryID uint64) error
	RevokeRight(ctx context.Context, username string, repositoryID uint64) error
	RevokeAllRights(ctx context.Context, username string) error
	HasRight(ctx context.Context, username string, repositoryID uint64) (bool, error)
	ListRights(ctx context.Context, username string) ([]domain.ExternalAccountRight, error)
}

// Interface is the full storage port composed of the per-entity stores,
// mirroring how harness-Harness's store.Store embeds Userstore,
// Repostore, etc. into one value.
type Interface interface {
	RepositoryStore
	PullRequestStore
	MergeRuleStore
	RequiredReviewerStore
	AccountStore
	ExternalAccountStore
	ExternalAccountRightStore
}
