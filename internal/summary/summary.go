// Package summary implements C11: a pure, byte-stable markdown renderer
// for the bot's single sticky "summary" PR comment.
package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scbot-go/scbot/internal/domain"
)

func checkmark(ok bool) string {
	if ok {
		return "x"
	}
	return " "
}

// Render produces the summary markdown for status. It is a pure function
// of its inputs: equal inputs always produce byte-identical output, the
// property spec.md §8 calls "Summary idempotence".
func Render(status domain.PullRequestStatus, repo domain.Repository, requiredReviewers []string) string {
	var b strings.Builder

	step := status.StepLabel()
	b.WriteString("## Status\n\n")
	fmt.Fprintf(&b, "**%s**\n\n", stepHeading(step))

	b.WriteString("| Check | State |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(&b, "| Title valid | [%s] |\n", checkmark(status.ValidPRTitle))
	fmt.Fprintf(&b, "| Not a draft / WIP | [%s] |\n", checkmark(!status.WIP))
	fmt.Fprintf(&b, "| Checks | %s |\n", titleCase(string(status.ChecksStatus)))
	fmt.Fprintf(&b, "| QA | %s |\n", titleCase(string(status.QaStatus)))
	fmt.Fprintf(&b, "| Mergeable | [%s] |\n", checkmark(status.Mergeable))
	fmt.Fprintf(&b, "| Changes requested | [%s] |\n", checkmark(status.ChangesRequired))
	fmt.Fprintf(&b, "| Locked | [%s] |\n", checkmark(status.Locked))

	if len(requiredReviewers) > 0 {
		b.WriteString("\n### Required reviewers\n\n")
		missing := map[string]bool{}
		for _, u := range status.RequiredReviewsMissing {
			missing[u] = true
		}
		sorted := append([]string(nil), requiredReviewers...)
		sort.Strings(sorted)
		for _, u := range sorted {
			fmt.Fprintf(&b, "- [%s] @%s\n", checkmark(!missing[u]), u)
		}
	}

	if status.ReviewsMissing > 0 {
		fmt.Fprintf(&b, "\n%d more review(s) needed.\n", status.ReviewsMissing)
	}

	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "*%s/%s — reconciled by the bot.*\n", repo.Owner, repo.Name)

	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func stepHeading(step domain.StepLabel) string {
	switch step {
	case domain.StepWip:
		return "Work in progress."
	case domain.StepAwaitingChecks:
		return "Waiting on checks."
	case domain.StepAwaitingChanges:
		return "Changes required."
	case domain.StepAwaitingReview:
		return "Waiting on review(s)."
	case domain.StepAwaitingRequiredReview:
		return "Waiting on required review(s)."
	case domain.StepAwaitingQa:
		return "Waiting on QA."
	case domain.StepAwaitingMerge:
		return "Ready to merge."
	case domain.StepLocked:
		return "Locked."
	default:
		return string(step)
	}
}
