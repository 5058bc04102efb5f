// Package ghclient implements ghapi.Client over google/go-github/v57,
// the production GitHub HTTP client. It keeps the teacher's
// retry-with-backoff posture (github.Client.request in the teacher)
// around every call, since go-github itself does not retry.
package ghclient

import (
	"context"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scbot-go/scbot/internal/ghapi"
)

const (
	maxRetries    = 8
	initialBackoff = 2 * time.Second
)

// Client wraps *github.Client to satisfy ghapi.Client.
type Client struct {
	gh       *github.Client
	botUser  string
	log      *logrus.Entry
	metrics  CallCounter
}

// CallCounter is incremented once per upstream call, feeding the
// github_api_calls metric from spec.md §6.
type CallCounter interface {
	Inc()
}

type noopCounter struct{}

func (noopCounter) Inc() {}

// New wraps an authenticated *github.Client (app or PAT auth is the
// caller's concern, per spec.md's "GitHub HTTP client... only their
// contracts matter").
func New(gh *github.Client, botUser string, log *logrus.Entry, counter CallCounter) *Client {
	if counter == nil {
		counter = noopCounter{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{gh: gh, botUser: botUser, log: log, metrics: counter}
}

var _ ghapi.Client = (*Client)(nil)

func (c *Client) BotUsername() string { return c.botUser }

// retry retries transport failures with exponential backoff, mirroring
// github.Client.request in the teacher. It does not retry on a non-nil
// *github.Response with a 4xx/5xx status; go-github already returns an
// *github.ErrorResponse for those and retrying would not help.
func (c *Client) retry(ctx context.Context, name string, fn func() error) error {
	c.metrics.Inc()
	backoff := initialBackoff
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if _, ok := err.(*github.ErrorResponse); ok {
			return err
		}
		if _, ok := err.(*ghapi.MergeRefusedError); ok {
			return err
		}
		c.log.WithError(err).Warnf("%s: transport error, retrying", name)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return errors.Wrapf(err, "%s: giving up after %d retries", name, maxRetries)
}

func (c *Client) GetPullRequest(ctx context.Context, owner, name string, number uint64) (*ghapi.PullRequest, error) {
	var pr *github.PullRequest
	err := c.retry(ctx, "GetPullRequest", func() error {
		var e error
		pr, _, e = c.gh.PullRequests.Get(ctx, owner, name, int(number))
		return e
	})
	if err != nil {
		return nil, err
	}
	out := &ghapi.PullRequest{
		Number:  uint64(pr.GetNumber()),
		Title:   pr.GetTitle(),
		Draft:   pr.GetDraft(),
		HeadSHA: pr.GetHead().GetSHA(),
		HeadRef: pr.GetHead().GetRef(),
		BaseRef: pr.GetBase().GetRef(),
		Mergeable: pr.GetMergeable(),
		Merged:    pr.GetMerged(),
		Author:    pr.GetUser().GetLogin(),
	}
	return out, nil
}

func (c *Client) GetCombinedCheckSuites(ctx context.Context, owner, name, ref string) ([]ghapi.CheckSuite, error) {
	var resp *github.ListCheckSuiteResults
	err := c.retry(ctx, "GetCombinedCheckSuites", func() error {
		var e error
		resp, _, e = c.gh.Checks.ListCheckSuitesForRef(ctx, owner, name, ref, nil)
		return e
	})
	if err != nil {
		return nil, err
	}
	out := make([]ghapi.CheckSuite, 0, len(resp.CheckSuites))
	for _, cs := range resp.CheckSuites {
		out = append(out, ghapi.CheckSuite{
			Status:     ghapi.CheckSuiteStatus(cs.GetStatus()),
			Conclusion: ghapi.CheckSuiteConclusion(cs.GetConclusion()),
		})
	}
	return out, nil
}

func (c *Client) ListReviews(ctx context.Context, owner, name string, number uint64) ([]ghapi.Review, error) {
	var all []*github.PullRequestReview
	opts := &github.ListOptions{PerPage: 100}
	for {
		var page []*github.PullRequestReview
		var resp *github.Response
		err := c.retry(ctx, "ListReviews", func() error {
			var e error
			page, resp, e = c.gh.PullRequests.ListReviews(ctx, owner, name, int(number), opts)
			return e
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	out := make([]ghapi.Review, 0, len(all))
	for _, r := range all {
		out = append(out, ghapi.Review{
			User:        r.GetUser().GetLogin(),
			State:       ghapi.ReviewState(normalizeReviewState(r.GetState())),
			SubmittedAt: r.GetSubmittedAt().Time,
		})
	}
	return out, nil
}

func normalizeReviewState(s string) string {
	switch s {
	case "APPROVED":
		return string(ghapi.ReviewApproved)
	case "CHANGES_REQUESTED":
		return string(ghapi.ReviewChangesRequested)
	case "COMMENTED":
		return string(ghapi.ReviewCommented)
	case "DISMISSED":
		return string(ghapi.ReviewDismissed)
	default:
		return string(ghapi.ReviewPending)
	}
}

func (c *Client) CreateStatus(ctx context.Context, owner, name, ref string, status ghapi.CommitStatus) error {
	return c.retry(ctx, "CreateStatus", func() error {
		_, _, e := c.gh.Repositories.CreateStatus(ctx, owner, name, ref, &github.RepoStatus{
			State:       github.String(status.State),
			Context:     github.String(status.Context),
			Description: github.String(status.Description),
			TargetURL:   github.String(status.TargetURL),
		})
		return e
	})
}

func (c *Client) GetLastStatus(ctx context.Context, owner, name, ref, context_ string) (*ghapi.CommitStatus, error) {
	var combined *github.CombinedStatus
	err := c.retry(ctx, "GetCombinedStatus", func() error {
		var e error
		combined, _, e = c.gh.Repositories.GetCombinedStatus(ctx, owner, name, ref, nil)
		return e
	})
	if err != nil {
		return nil, err
	}
	for _, s := range combined.Statuses {
		if s.GetContext() == context_ {
			return &ghapi.CommitStatus{
				Context:     s.GetContext(),
				State:       s.GetState(),
				Description: s.GetDescription(),
				TargetURL:   s.GetTargetURL(),
			}, nil
		}
	}
	return nil, nil
}

func (c *Client) CreateComment(ctx context.Context, owner, name string, number uint64, body string) (uint64, error) {
	var comment *github.IssueComment
	err := c.retry(ctx, "CreateComment", func() error {
		var e error
		comment, _, e = c.gh.Issues.CreateComment(ctx, owner, name, int(number), &github.IssueComment{Body: github.String(body)})
		return e
	})
	if err != nil {
		return 0, err
	}
	return uint64(comment.GetID()), nil
}

func (c *Client) UpdateComment(ctx context.Context, owner, name string, commentID uint64, body string) error {
	err := c.retry(ctx, "UpdateComment", func() error {
		_, _, e := c.gh.Issues.EditComment(ctx, owner, name, int64(commentID), &github.IssueComment{Body: github.String(body)})
		return e
	})
	if isNotFound(err) {
		return ghapi.ErrCommentNotFound
	}
	return err
}

func isNotFound(err error) bool {
	resp, ok := err.(*github.ErrorResponse)
	return ok && resp.Response != nil && resp.Response.StatusCode == http.StatusNotFound
}

func (c *Client) DeleteComment(ctx context.Context, owner, name string, commentID uint64) error {
	err := c.retry(ctx, "DeleteComment", func() error {
		_, e := c.gh.Issues.DeleteComment(ctx, owner, name, int64(commentID))
		return e
	})
	if isNotFound(err) {
		return ghapi.ErrCommentNotFound
	}
	return err
}

func (c *Client) AddReaction(ctx context.Context, owner, name string, commentID uint64, kind string) error {
	return c.retry(ctx, "AddReaction", func() error {
		_, _, e := c.gh.Reactions.CreateIssueCommentReaction(ctx, owner, name, int64(commentID), kind)
		return e
	})
}

func (c *Client) AddLabel(ctx context.Context, owner, name string, number uint64, label string) error {
	return c.retry(ctx, "AddLabel", func() error {
		_, _, e := c.gh.Issues.AddLabelsToIssue(ctx, owner, name, int(number), []string{label})
		return e
	})
}

func (c *Client) RemoveLabel(ctx context.Context, owner, name string, number uint64, label string) error {
	return c.retry(ctx, "RemoveLabel", func() error {
		resp, e := c.gh.Issues.RemoveLabelForIssue(ctx, owner, name, int(number), label)
		if resp != nil && resp.StatusCode == 404 {
			// Already gone: not an error, matches the teacher's
			// "GitHub sometimes returns 200 for this call" tolerance.
			return nil
		}
		return e
	})
}

func (c *Client) ListLabels(ctx context.Context, owner, name string, number uint64) ([]string, error) {
	var labels []*github.Label
	err := c.retry(ctx, "ListLabels", func() error {
		var e error
		labels, _, e = c.gh.Issues.ListLabelsByIssue(ctx, owner, name, int(number), nil)
		return e
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.GetName())
	}
	return out, nil
}

func (c *Client) Merge(ctx context.Context, owner, name string, number uint64, details ghapi.MergeDetails) error {
	return c.retry(ctx, "Merge", func() error {
		_, resp, e := c.gh.PullRequests.Merge(ctx, owner, name, int(number), details.CommitTitle, &github.PullRequestOptions{
			MergeMethod: details.Strategy,
			SHA:         details.SHA,
		})
		if e != nil {
			reason := e.Error()
			if resp != nil && (resp.StatusCode == 405 || resp.StatusCode == 409) {
				return &ghapi.MergeRefusedError{Number: number, RepositoryPath: owner + "/" + name, Reason: reason}
			}
			return e
		}
		return nil
	})
}

func (c *Client) HasWritePermission(ctx context.Context, owner, name, username string) (bool, error) {
	var level *github.RepositoryPermissionLevel
	err := c.retry(ctx, "HasWritePermission", func() error {
		var e error
		level, _, e = c.gh.Repositories.GetPermissionLevel(ctx, owner, name, username)
		return e
	})
	if err != nil {
		return false, err
	}
	switch level.GetPermission() {
	case "admin", "write", "maintain":
		return true, nil
	default:
		return false, nil
	}
}
