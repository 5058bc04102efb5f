package domain

// PullRequestStatus is derived, never persisted: the single coherent view
// of a PR's upstream + bot state that the reconciliation engine computes
// on every pass and that the step-label and summary logic consume.
type PullRequestStatus struct {
	WIP                    bool
	ValidPRTitle           bool
	Mergeable              bool
	Merged                 bool
	ChecksStatus           ChecksStatus
	QaStatus               QaStatus
	RequiredReviewsMissing []string
	ReviewsMissing         uint64
	ChangesRequired        bool
	Locked                 bool
}

// StepLabel implements Table A of spec.md §4.1: the guards are evaluated
// top-down and the first match wins.
func (s PullRequestStatus) StepLabel() StepLabel {
	switch {
	case s.WIP:
		return StepWip
	case !s.ValidPRTitle:
		return StepAwaitingChanges
	case s.ChecksStatus == ChecksFail:
		return StepAwaitingChanges
	case s.ChecksStatus == ChecksWaiting:
		return StepAwaitingChecks
	case s.ChangesRequired || (!s.Mergeable && !s.Merged):
		return StepAwaitingChanges
	case len(s.RequiredReviewsMissing) > 0:
		return StepAwaitingRequiredReview
	case s.ReviewsMissing > 0:
		return StepAwaitingReview
	case s.QaStatus == QaFail:
		return StepAwaitingChanges
	case s.QaStatus == QaWaiting:
		return StepAwaitingQa
	case s.Locked:
		return StepLocked
	default:
		return StepAwaitingMerge
	}
}
