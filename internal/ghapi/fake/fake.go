// Package fake is an in-memory ghapi.Client for engine/dispatcher tests,
// grounded on the teacher's github.NewFakeClient ("a client that will not
// perform any actions at all" but still answers queries from fixtures).
package fake

import (
	"context"
	"sync"

	"github.com/scbot-go/scbot/internal/ghapi"
)

type commentKey struct {
	repo   string
	number uint64
}

// Client is a fully in-memory ghapi.Client. Tests seed PullRequests,
// CheckSuites and Reviews directly, then assert on Statuses/Comments/
// Labels/MergeCalls after exercising the code under test.
type Client struct {
	mu sync.Mutex

	Bot string

	PullRequests map[string]*ghapi.PullRequest // "owner/repo#number"
	CheckSuites  map[string][]ghapi.CheckSuite  // "owner/repo@sha"
	Reviews      map[string][]ghapi.Review      // "owner/repo#number"
	Permissions  map[string]bool                // "owner/repo:username"

	Statuses map[string]ghapi.CommitStatus // "owner/repo@sha:context"
	Labels   map[string]map[string]bool    // "owner/repo#number" -> label set

	Comments   map[commentKey][]*storedComment
	nextCommentID uint64

	Reactions []Reaction
	MergeCalls []MergeCall
}

type storedComment struct {
	ID   uint64
	Body string
}

type Reaction struct {
	Repo      string
	CommentID uint64
	Kind      string
}

type MergeCall struct {
	Repo     string
	Number   uint64
	Strategy string
}

func New(bot string) *Client {
	return &Client{
		Bot:          bot,
		PullRequests: map[string]*ghapi.PullRequest{},
		CheckSuites:  map[string][]ghapi.CheckSuite{},
		Reviews:      map[string][]ghapi.Review{},
		Permissions:  map[string]bool{},
		Statuses:     map[string]ghapi.CommitStatus{},
		Labels:       map[string]map[string]bool{},
		Comments:     map[commentKey][]*storedComment{},
	}
}

var _ ghapi.Client = (*Client)(nil)

func repoKey(owner, name string) string { return owner + "/" + name }

func (c *Client) BotUsername() string { return c.Bot }

func (c *Client) SeedPullRequest(owner, name string, pr ghapi.PullRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := pr
	c.PullRequests[prKeyStr(owner, name, pr.Number)] = &cp
}

func prKeyStr(owner, name string, number uint64) string {
	return repoKey(owner, name) + "#" + itoa(number)
}

func (c *Client) GetPullRequest(_ context.Context, owner, name string, number uint64) (*ghapi.PullRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pr, ok := c.PullRequests[prKeyStr(owner, name, number)]
	if !ok {
		return nil, &notFound{"pull_request"}
	}
	cp := *pr
	return &cp, nil
}

func (c *Client) SeedCheckSuites(owner, name, sha string, suites []ghapi.CheckSuite) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CheckSuites[repoKey(owner, name)+"@"+sha] = suites
}

func (c *Client) GetCombinedCheckSuites(_ context.Context, owner, name, ref string) ([]ghapi.CheckSuite, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CheckSuites[repoKey(owner, name)+"@"+ref], nil
}

func (c *Client) SeedReviews(owner, name string, number uint64, reviews []ghapi.Review) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reviews[prKeyStr(owner, name, number)] = reviews
}

func (c *Client) ListReviews(_ context.Context, owner, name string, number uint64) ([]ghapi.Review, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Reviews[prKeyStr(owner, name, number)], nil
}

func (c *Client) CreateStatus(_ context.Context, owner, name, ref string, status ghapi.CommitStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[repoKey(owner, name)+"@"+ref+":"+status.Context] = status
	return nil
}

func (c *Client) GetLastStatus(_ context.Context, owner, name, ref, context_ string) (*ghapi.CommitStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.Statuses[repoKey(owner, name)+"@"+ref+":"+context_]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *Client) CreateComment(_ context.Context, owner, name string, number uint64, body string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextCommentID++
	id := c.nextCommentID
	k := commentKey{repo: repoKey(owner, name), number: number}
	c.Comments[k] = append(c.Comments[k], &storedComment{ID: id, Body: body})
	return id, nil
}

func (c *Client) UpdateComment(_ context.Context, owner, name string, commentID uint64, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, list := range c.Comments {
		for _, cm := range list {
			if cm.ID == commentID {
				cm.Body = body
				return nil
			}
		}
	}
	return ghapi.ErrCommentNotFound
}

func (c *Client) DeleteComment(_ context.Context, owner, name string, commentID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, list := range c.Comments {
		for i, cm := range list {
			if cm.ID == commentID {
				c.Comments[k] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return ghapi.ErrCommentNotFound
}

func (c *Client) AddReaction(_ context.Context, owner, name string, commentID uint64, kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reactions = append(c.Reactions, Reaction{Repo: repoKey(owner, name), CommentID: commentID, Kind: kind})
	return nil
}

func (c *Client) AddLabel(_ context.Context, owner, name string, number uint64, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := prKeyStr(owner, name, number)
	set, ok := c.Labels[k]
	if !ok {
		set = map[string]bool{}
		c.Labels[k] = set
	}
	set[label] = true
	return nil
}

func (c *Client) RemoveLabel(_ context.Context, owner, name string, number uint64, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.Labels[prKeyStr(owner, name, number)]; ok {
		delete(set, label)
	}
	return nil
}

func (c *Client) ListLabels(_ context.Context, owner, name string, number uint64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.Labels[prKeyStr(owner, name, number)]
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	return out, nil
}

func (c *Client) Merge(_ context.Context, owner, name string, number uint64, details ghapi.MergeDetails) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MergeCalls = append(c.MergeCalls, MergeCall{Repo: repoKey(owner, name), Number: number, Strategy: details.Strategy})
	if pr, ok := c.PullRequests[prKeyStr(owner, name, number)]; ok {
		pr.Merged = true
	}
	return nil
}

func (c *Client) SetPermission(owner, name, username string, write bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Permissions[repoKey(owner, name)+":"+username] = write
}

func (c *Client) HasWritePermission(_ context.Context, owner, name, username string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Permissions[repoKey(owner, name)+":"+username], nil
}

type notFound struct{ entity string }

func (e *notFound) Error() string { return e.entity + " not found" }

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
