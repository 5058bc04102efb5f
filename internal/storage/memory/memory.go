// Package memory is a map-based storage.Interface implementation used by
// engine/dispatcher/CLI tests and the `scbot debug` in-memory mode.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/storage"
)

type repoKey struct {
	owner, name string
}

type prKey struct {
	repositoryID uint64
	number       uint64
}

type ruleKey struct {
	repositoryID uint64
	base, head   string
}

// Store is an in-memory storage.Interface. All methods are safe for
// concurrent use.
type Store struct {
	mu sync.Mutex

	nextRepoID uint64
	nextPRID   uint64

	repos      map[repoKey]*domain.Repository
	reposByID  map[uint64]*domain.Repository
	prs        map[prKey]*domain.PullRequest
	prsByID    map[uint64]*domain.PullRequest
	rules      map[ruleKey]domain.MergeRule
	reviewers  map[uint64]map[string]struct{}
	accounts   map[string]domain.Account
	extAccts   map[string]domain.ExternalAccount
	extRights  map[string]map[uint64]struct{}
}

func New() *Store {
	return &Store{
		repos:     map[repoKey]*domain.Repository{},
		reposByID: map[uint64]*domain.Repository{},
		prs:       map[prKey]*domain.PullRequest{},
		prsByID:   map[uint64]*domain.PullRequest{},
		rules:     map[ruleKey]domain.MergeRule{},
		reviewers: map[uint64]map[string]struct{}{},
		accounts:  map[string]domain.Account{},
		extAccts:  map[string]domain.ExternalAccount{},
		extRights: map[string]map[uint64]struct{}{},
	}
}

var _ storage.Interface = (*Store)(nil)

func ruleKeyOf(repositoryID uint64, base, head domain.RuleBranch) ruleKey {
	return ruleKey{repositoryID: repositoryID, base: base.String(), head: head.String()}
}

// --- RepositoryStore ---

func (s *Store) GetRepository(_ context.Context, owner, name string) (*domain.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[repoKey{owner, name}]
	if !ok {
		return nil, &storage.NotFoundError{Entity: "repository", Key: owner + "/" + name}
	}
	cp := *r
	return &cp, nil
}

func (s *Store) GetRepositoryByID(_ context.Context, id uint64) (*domain.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reposByID[id]
	if !ok {
		return nil, &storage.NotFoundError{Entity: "repository", Key: strconv.FormatUint(id, 10)}
	}
	cp := *r
	return &cp, nil
}

func (s *Store) CreateRepository(_ context.Context, repo *domain.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRepoID++
	repo.ID = s.nextRepoID
	cp := *repo
	s.repos[repoKey{repo.Owner, repo.Name}] = &cp
	s.reposByID[cp.ID] = &cp
	return nil
}

func (s *Store) UpdateRepository(_ context.Context, repo *domain.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reposByID[repo.ID]; !ok {
		return &storage.NotFoundError{Entity: "repository", Key: strconv.FormatUint(repo.ID, 10)}
	}
	cp := *repo
	s.repos[repoKey{repo.Owner, repo.Name}] = &cp
	s.reposByID[cp.ID] = &cp
	return nil
}

func (s *Store) DeleteRepository(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reposByID[id]
	if !ok {
		return &storage.NotFoundError{Entity: "repository", Key: strconv.FormatUint(id, 10)}
	}
	delete(s.repos, repoKey{r.Owner, r.Name})
	delete(s.reposByID, id)
	for k, pr := range s.prs {
		if pr.RepositoryID == id {
			delete(s.prs, k)
			delete(s.prsByID, pr.ID)
			delete(s.reviewers, pr.ID)
		}
	}
	for k := range s.rules {
		if k.repositoryID == id {
			delete(s.rules, k)
		}
	}
	for u, set := range s.extRights {
		delete(set, id)
		if len(set) == 0 {
			delete(s.extRights, u)
		}
	}
	return nil
}

func (s *Store) ListRepositories(_ context.Context) ([]domain.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Repository, 0, len(s.reposByID))
	for _, r := range s.reposByID {
		out = append(out, *r)
	}
	return out, nil
}

// --- PullRequestStore ---

func (s *Store) GetPullRequest(_ context.Context, repositoryID, number uint64) (*domain.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.prs[prKey{repositoryID, number}]
	if !ok {
		return nil, &storage.NotFoundError{Entity: "pull_request", Key: strconv.FormatUint(repositoryID, 10) + "#" + strconv.FormatUint(number, 10)}
	}
	cp := *pr
	return &cp, nil
}

func (s *Store) CreatePullRequest(_ context.Context, pr *domain.PullRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPRID++
	pr.ID = s.nextPRID
	cp := *pr
	s.prs[prKey{pr.RepositoryID, pr.Number}] = &cp
	s.prsByID[cp.ID] = &cp
	return nil
}

func (s *Store) UpdatePullRequest(_ context.Context, pr *domain.PullRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prsByID[pr.ID]; !ok {
		return &storage.NotFoundError{Entity: "pull_request", Key: strconv.FormatUint(pr.ID, 10)}
	}
	cp := *pr
	s.prs[prKey{pr.RepositoryID, pr.Number}] = &cp
	s.prsByID[cp.ID] = &cp
	return nil
}

func (s *Store) DeletePullRequest(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.prsByID[id]
	if !ok {
		return &storage.NotFoundError{Entity: "pull_request", Key: strconv.FormatUint(id, 10)}
	}
	delete(s.prs, prKey{pr.RepositoryID, pr.Number})
	delete(s.prsByID, id)
	delete(s.reviewers, id)
	return nil
}

func (s *Store) ListOpenPullRequests(_ context.Context, repositoryID uint64) ([]domain.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PullRequest
	for _, pr := range s.prsByID {
		if pr.RepositoryID == repositoryID {
			out = append(out, *pr)
		}
	}
	return out, nil
}

func (s *Store) ListAllPullRequests(_ context.Context) ([]domain.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PullRequest, 0, len(s.prsByID))
	for _, pr := range s.prsByID {
		out = append(out, *pr)
	}
	return out, nil
}

// --- MergeRuleStore ---

func (s *Store) GetMergeRule(_ context.Context, repositoryID uint64, base, head domain.RuleBranch) (*domain.MergeRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleKeyOf(repositoryID, base, head)]
	if !ok {
		return nil, &storage.NotFoundError{Entity: "merge_rule", Key: base.String() + "->" + head.String()}
	}
	return &r, nil
}

func (s *Store) SetMergeRule(_ context.Context, rule domain.MergeRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[ruleKeyOf(rule.RepositoryID, rule.Base, rule.Head)] = rule
	return nil
}

func (s *Store) DeleteMergeRule(_ context.Context, repositoryID uint64, base, head domain.RuleBranch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, ruleKeyOf(repositoryID, base, head))
	return nil
}

func (s *Store) ListMergeRules(_ context.Context, repositoryID uint64) ([]domain.MergeRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MergeRule
	for k, r := range s.rules {
		if k.repositoryID == repositoryID {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- RequiredReviewerStore ---

func (s *Store) AddRequiredReviewer(_ context.Context, pullRequestID uint64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.reviewers[pullRequestID]
	if !ok {
		set = map[string]struct{}{}
		s.reviewers[pullRequestID] = set
	}
	set[username] = struct{}{}
	return nil
}

func (s *Store) RemoveRequiredReviewer(_ context.Context, pullRequestID uint64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.reviewers[pullRequestID]; ok {
		delete(set, username)
	}
	return nil
}

func (s *Store) ListRequiredReviewers(_ context.Context, pullRequestID uint64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.reviewers[pullRequestID]
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	return out, nil
}

// --- AccountStore ---

func (s *Store) GetAccount(_ context.Context, username string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[username]
	if !ok {
		return nil, &storage.NotFoundError{Entity: "account", Key: username}
	}
	return &a, nil
}

func (s *Store) UpsertAccount(_ context.Context, account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Username] = account
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, username)
	return nil
}

func (s *Store) ListAccounts(_ context.Context, adminOnly bool) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Account
	for _, a := range s.accounts {
		if adminOnly && !a.IsAdmin {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// --- ExternalAccountStore ---

func (s *Store) GetExternalAccount(_ context.Context, username string) (*domain.ExternalAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.extAccts[username]
	if !ok {
		return nil, &storage.NotFoundError{Entity: "external_account", Key: username}
	}
	return &a, nil
}

func (s *Store) CreateExternalAccount(_ context.Context, account domain.ExternalAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extAccts[account.Username] = account
	return nil
}

func (s *Store) DeleteExternalAccount(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.extAccts, username)
	delete(s.extRights, username)
	return nil
}

func (s *Store) ListExternalAccounts(_ context.Context) ([]domain.ExternalAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ExternalAccount, 0, len(s.extAccts))
	for _, a := range s.extAccts {
		out = append(out, a)
	}
	return out, nil
}

// --- ExternalAccountRightStore ---

func (s *Store) GrantRight(_ context.Context, username string, repositoryID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.extRights[username]
	if !ok {
		set = map[uint64]struct{}{}
		s.extRights[username] = set
	}
	set[repositoryID] = struct{}{}
	return nil
}

func (s *Store) RevokeRight(_ context.Context, username string, repositoryID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.extRights[username]; ok {
		delete(set, repositoryID)
	}
	return nil
}

func (s *Store) RevokeAllRights(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.extRights, username)
	return nil
}

func (s *Store) HasRight(_ context.Context, username string, repositoryID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.extRights[username]
	if !ok {
		return false, nil
	}
	_, ok = set[repositoryID]
	return ok, nil
}

func (s *Store) ListRights(_ context.Context, username string) ([]domain.ExternalAccountRight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.extRights[username]
	out := make([]domain.ExternalAccountRight, 0, len(set))
	for repoID := range set {
		out = append(out, domain.ExternalAccountRight{Username: username, RepositoryID: repoID})
	}
	return out, nil
}

