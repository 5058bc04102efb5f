package engine

import (
	"sort"
	"strings"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/ghapi"
)

// deriveStatus builds the PullRequestStatus spec.md §4.1 step 4
// describes, from the upstream PR, its reviews and check suites, and the
// bot's own persisted configuration for the PR.
func deriveStatus(repo domain.Repository, pr domain.PullRequest, upstream ghapi.PullRequest, reviews []ghapi.Review, checkSuites []ghapi.CheckSuite, requiredReviewers []string) (domain.PullRequestStatus, error) {
	validTitle, err := repo.ValidateTitle(upstream.Title)
	if err != nil {
		return domain.PullRequestStatus{}, err
	}

	approving, changesRequested := collapseReviews(reviews)

	missing := make([]string, 0)
	for _, u := range requiredReviewers {
		if !approving[u] {
			missing = append(missing, u)
		}
	}
	sort.Strings(missing)

	var reviewsMissing uint64
	if uint64(len(approving)) < pr.NeededReviewersCount {
		reviewsMissing = pr.NeededReviewersCount - uint64(len(approving))
	}

	return domain.PullRequestStatus{
		WIP:                    upstream.Draft || strings.HasPrefix(strings.ToUpper(strings.TrimSpace(upstream.Title)), "WIP"),
		ValidPRTitle:           validTitle,
		Mergeable:              upstream.Mergeable,
		Merged:                 upstream.Merged,
		ChecksStatus:           deriveChecksStatus(checkSuites, pr.ChecksEnabled),
		QaStatus:               pr.QaStatus,
		RequiredReviewsMissing: missing,
		ReviewsMissing:         reviewsMissing,
		ChangesRequired:        changesRequested,
		Locked:                 pr.Locked,
	}, nil
}

// collapseReviews collapses per-user review history down to each user's
// latest submission by SubmittedAt, per spec.md §4.1 step 4.
func collapseReviews(reviews []ghapi.Review) (approving map[string]bool, changesRequested bool) {
	latest := map[string]ghapi.Review{}
	for _, r := range reviews {
		if cur, ok := latest[r.User]; !ok || r.SubmittedAt.After(cur.SubmittedAt) {
			latest[r.User] = r
		}
	}
	approving = map[string]bool{}
	for user, r := range latest {
		switch r.State {
		case ghapi.ReviewApproved:
			approving[user] = true
		case ghapi.ReviewChangesRequested:
			changesRequested = true
		}
	}
	return approving, changesRequested
}

// deriveChecksStatus implements the checks_status rule of spec.md §4.1
// step 4: disabled checks are always Skipped; otherwise any incomplete
// suite means Waiting, any suite with a failing conclusion means Fail,
// an all-skipped (or empty) set means Skipped, and anything else is Pass.
func deriveChecksStatus(suites []ghapi.CheckSuite, checksEnabled bool) domain.ChecksStatus {
	if !checksEnabled {
		return domain.ChecksSkipped
	}
	if len(suites) == 0 {
		return domain.ChecksSkipped
	}

	anyIncomplete := false
	anyFailed := false
	allSkipped := true
	for _, s := range suites {
		if s.Status != ghapi.CheckSuiteCompleted {
			anyIncomplete = true
		}
		if s.Conclusion != ghapi.ConclusionSkipped {
			allSkipped = false
		}
		switch s.Conclusion {
		case ghapi.ConclusionFailure, ghapi.ConclusionCancelled, ghapi.ConclusionTimedOut,
			ghapi.ConclusionActionRequired, ghapi.ConclusionStartupFailure, ghapi.ConclusionStale:
			anyFailed = true
		}
	}

	switch {
	case anyIncomplete:
		return domain.ChecksWaiting
	case anyFailed:
		return domain.ChecksFail
	case allSkipped:
		return domain.ChecksSkipped
	default:
		return domain.ChecksPass
	}
}
