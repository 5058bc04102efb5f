// Package httpapi implements C9: the signed external RPC surface third
// parties use to toggle QA status on PRs they hold an
// ExternalAccountRight for. Grounded on the teacher's
// "reject before doing anything else" validation posture
// (github.ValidatePayload on the webhook side), generalized here to
// Authorization: Bearer RS256 JWT auth via internal/crypto.
package httpapi

// setQAStatusRequest is the body of POST .../set-qa-status, per spec.md §4.4.
type setQAStatusRequest struct {
	RepositoryPath     string   `json:"repository_path"`
	PullRequestNumbers []uint64 `json:"pull_request_numbers"`
	Author             string   `json:"author"`
	// Status is true=Pass, false=Fail, null=Waiting.
	Status *bool `json:"status"`
}

type pullRequestOutcome struct {
	Number uint64 `json:"number"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

type setQAStatusResponse struct {
	Results []pullRequestOutcome `json:"results"`
}
