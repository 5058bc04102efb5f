package ghapi

import "context"

// Client is the narrow set of GitHub operations C6/C7/C9 need. The
// production implementation (internal/ghclient) wraps
// google/go-github/v57; tests use a hand-rolled fake mirroring the
// teacher's github.NewFakeClient.
type Client interface {
	GetPullRequest(ctx context.Context, owner, name string, number uint64) (*PullRequest, error)
	GetCombinedCheckSuites(ctx context.Context, owner, name, ref string) ([]CheckSuite, error)
	ListReviews(ctx context.Context, owner, name string, number uint64) ([]Review, error)

	CreateStatus(ctx context.Context, owner, name, ref string, status CommitStatus) error
	GetLastStatus(ctx context.Context, owner, name, ref, context_ string) (*CommitStatus, error)

	CreateComment(ctx context.Context, owner, name string, number uint64, body string) (id uint64, err error)
	UpdateComment(ctx context.Context, owner, name string, commentID uint64, body string) error
	DeleteComment(ctx context.Context, owner, name string, commentID uint64) error
	AddReaction(ctx context.Context, owner, name string, commentID uint64, kind string) error

	AddLabel(ctx context.Context, owner, name string, number uint64, label string) error
	RemoveLabel(ctx context.Context, owner, name string, number uint64, label string) error
	ListLabels(ctx context.Context, owner, name string, number uint64) ([]string, error)

	Merge(ctx context.Context, owner, name string, number uint64, details MergeDetails) error

	HasWritePermission(ctx context.Context, owner, name, username string) (bool, error)

	BotUsername() string
}
