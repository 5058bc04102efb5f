// Package ghapi is the contract over GitHub operations the engine and
// dispatcher need (C3), shaped like the teacher's narrow per-consumer
// interfaces in tide.githubClient / plugins/trigger.githubClient: one
// method per capability actually called, not the full GitHub surface.
package ghapi

import (
	"errors"
	"time"
)

// ErrCommentNotFound is returned by UpdateComment/DeleteComment when the
// upstream comment has been deleted out-of-band (e.g. by a repo admin),
// the case spec.md §4.1 step 7 calls a "repost".
var ErrCommentNotFound = errors.New("ghapi: comment not found")

// PullRequest is the subset of upstream PR state the engine reads,
// named per the field list spec.md §6 enumerates.
type PullRequest struct {
	Number   uint64
	Title    string
	Draft    bool
	HeadSHA  string
	HeadRef  string
	BaseRef  string
	Mergeable bool
	Merged   bool
	Author   string
}

// ReviewState mirrors the GitHub review state enum.
type ReviewState string

const (
	ReviewApproved        ReviewState = "approved"
	ReviewChangesRequested ReviewState = "changes_requested"
	ReviewCommented       ReviewState = "commented"
	ReviewDismissed       ReviewState = "dismissed"
	ReviewPending         ReviewState = "pending"
)

// Review is one review submission.
type Review struct {
	User        string
	State       ReviewState
	SubmittedAt time.Time
}

// CheckSuiteStatus mirrors the GitHub check-suite "status" field.
type CheckSuiteStatus string

const (
	CheckSuiteQueued     CheckSuiteStatus = "queued"
	CheckSuiteInProgress CheckSuiteStatus = "in_progress"
	CheckSuiteCompleted  CheckSuiteStatus = "completed"
)

// CheckSuiteConclusion mirrors the GitHub check-suite "conclusion" field.
type CheckSuiteConclusion string

const (
	ConclusionSuccess        CheckSuiteConclusion = "success"
	ConclusionFailure        CheckSuiteConclusion = "failure"
	ConclusionNeutral        CheckSuiteConclusion = "neutral"
	ConclusionCancelled      CheckSuiteConclusion = "cancelled"
	ConclusionTimedOut       CheckSuiteConclusion = "timed_out"
	ConclusionActionRequired CheckSuiteConclusion = "action_required"
	ConclusionStale          CheckSuiteConclusion = "stale"
	ConclusionStartupFailure CheckSuiteConclusion = "startup_failure"
	ConclusionSkipped        CheckSuiteConclusion = "skipped"
)

// CheckSuite is one check suite run against a head SHA.
type CheckSuite struct {
	Status     CheckSuiteStatus
	Conclusion CheckSuiteConclusion
}

// CommitStatus is the status written with Status. State values mirror
// domain.CommitStatusState.
type CommitStatus struct {
	Context     string
	State       string
	Description string
	TargetURL   string
}

// MergeDetails configures a merge call.
type MergeDetails struct {
	Strategy string
	SHA      string
	CommitTitle string
}

// MergeRefusedError is demoted at the auto-merge call site into a PR
// comment + automerge flag clear, per spec.md §7.
type MergeRefusedError struct {
	Number       uint64
	RepositoryPath string
	Reason       string
}

func (e *MergeRefusedError) Error() string {
	return "merge refused for " + e.RepositoryPath + "#" + itoa(e.Number) + ": " + e.Reason
}

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
