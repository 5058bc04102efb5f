package domain

import (
	"regexp"
	"strconv"
)

// Repository is uniquely keyed by (Owner, Name). Created explicitly via
// the CLI or lazily when a webhook references an unknown repo.
type Repository struct {
	ID                          uint64
	Owner                       string
	Name                        string
	ManualInteraction           bool
	PRTitleValidationRegex      string
	DefaultStrategy             MergeStrategy
	DefaultNeededReviewersCount uint64
	DefaultAutomerge            bool
	DefaultEnableQA             bool
	DefaultEnableChecks         bool
}

func (r Repository) Path() string { return r.Owner + "/" + r.Name }

// ValidateTitle checks the PR title against the repository's configured
// regex. An empty regex always validates.
func (r Repository) ValidateTitle(title string) (bool, error) {
	if r.PRTitleValidationRegex == "" {
		return true, nil
	}
	re, err := regexp.Compile(r.PRTitleValidationRegex)
	if err != nil {
		return false, err
	}
	return re.MatchString(title), nil
}

// PullRequest is uniquely keyed by (RepositoryID, Number).
type PullRequest struct {
	ID                   uint64
	RepositoryID         uint64
	Number               uint64
	QaStatus             QaStatus
	NeededReviewersCount uint64
	StatusCommentID      uint64
	ChecksEnabled        bool
	Automerge            bool
	Locked               bool
	LockReason           string
	StrategyOverride     *MergeStrategy
}

// Handle is the (owner, name, number) triple identifying a PR globally.
type Handle struct {
	Owner  string
	Name   string
	Number uint64
}

func (h Handle) String() string { return h.Owner + "/" + h.Name + "#" + strconv.FormatUint(h.Number, 10) }

// LockKey is the per-PR advisory lock key from spec.md §5.
func (h Handle) LockKey() string {
	return "pr-status::" + h.Owner + "/" + h.Name + "/" + strconv.FormatUint(h.Number, 10)
}

// RepoLockKey is the per-repository advisory lock key from spec.md §5.
func RepoLockKey(owner, name string) string {
	return "repo::" + owner + "/" + name
}

// MergeRule is a persisted (base, head) -> strategy mapping. The
// (Wildcard, Wildcard) rule is synthetic: it is the repository's
// DefaultStrategy and is never actually stored as a MergeRule row.
type MergeRule struct {
	RepositoryID uint64
	Base         RuleBranch
	Head         RuleBranch
	Strategy     MergeStrategy
}

// RequiredReviewer is a set member of (PullRequestID, Username).
type RequiredReviewer struct {
	PullRequestID uint64
	Username      string
}

// Account is a human GitHub user known to the bot, e.g. for admin rights.
type Account struct {
	Username string
	IsAdmin  bool
}

// ExternalAccount is a non-human caller of the external RPC surface.
type ExternalAccount struct {
	Username   string
	PublicKey  string
	PrivateKey string
}

// ExternalAccountRight grants an ExternalAccount mutation rights on a
// specific repository.
type ExternalAccountRight struct {
	Username     string
	RepositoryID uint64
}
