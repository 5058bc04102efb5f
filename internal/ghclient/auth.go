package ghclient

import (
	"context"
	"net/http"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// NewAuthenticatedHTTPClient builds the *http.Client go-github needs from
// a bot token (a GitHub App installation token or a PAT — spec.md treats
// "the GitHub HTTP client implementation" as an external collaborator;
// only this thin construction point lives here).
func NewAuthenticatedHTTPClient(ctx context.Context, token string) *http.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return oauth2.NewClient(ctx, ts)
}

// NewGitHubClient wraps the authenticated HTTP client in a *github.Client.
func NewGitHubClient(httpClient *http.Client) *github.Client {
	return github.NewClient(httpClient)
}
