// Package engine implements C6, the reconciliation engine: the single
// place spec.md §4.1's ten-step algorithm runs, grounded on
// tide.Controller.Sync and github/reporter in the teacher.
package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/ghapi"
	"github.com/scbot-go/scbot/internal/lock"
	"github.com/scbot-go/scbot/internal/mergestrategy"
	"github.com/scbot-go/scbot/internal/storage"
	"github.com/scbot-go/scbot/internal/summary"
)

// Engine owns one reconcile pass per PR. It holds no per-PR state of its
// own; everything it needs is loaded from Storage and the upstream API
// on each call, the way tide.Controller recomputes its pool every sync.
type Engine struct {
	Storage     storage.Interface
	API         ghapi.Client
	Locks       lock.Service
	LockTimeout time.Duration
	Log         *logrus.Entry

	// DefaultRepoConfig seeds a Repository row lazily created for a repo
	// the bot has never seen before (spec.md §4.1's "unknown repository"
	// case). Owner/Name/ID are ignored and overwritten.
	DefaultRepoConfig domain.Repository
}

// New builds an Engine. log may be nil, in which case the standard
// logger is used.
func New(store storage.Interface, api ghapi.Client, locks lock.Service, lockTimeout time.Duration, log *logrus.Entry, defaultRepoConfig domain.Repository) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{Storage: store, API: api, Locks: locks, LockTimeout: lockTimeout, Log: log, DefaultRepoConfig: defaultRepoConfig}
}

// Synchronize implements spec.md §4.1's "unknown repository / unknown
// PR" bootstrap: it lazily creates the Repository and PullRequest rows
// from the bot's configured defaults, if they do not already exist, then
// runs UpdateStatus.
func (e *Engine) Synchronize(ctx context.Context, handle domain.Handle) error {
	repo, err := e.Storage.GetRepository(ctx, handle.Owner, handle.Name)
	if storage.IsNotFound(err) {
		seed := e.DefaultRepoConfig
		seed.Owner = handle.Owner
		seed.Name = handle.Name
		if createErr := e.Storage.CreateRepository(ctx, &seed); createErr != nil {
			return errors.Wrap(createErr, "create repository")
		}
		repo = &seed
	} else if err != nil {
		return errors.Wrap(err, "get repository")
	}

	pr, err := e.Storage.GetPullRequest(ctx, repo.ID, handle.Number)
	if storage.IsNotFound(err) {
		qa := domain.QaWaiting
		if !repo.DefaultEnableQA {
			qa = domain.QaSkipped
		}
		seed := domain.PullRequest{
			RepositoryID:         repo.ID,
			Number:               handle.Number,
			QaStatus:             qa,
			NeededReviewersCount: repo.DefaultNeededReviewersCount,
			ChecksEnabled:        repo.DefaultEnableChecks,
			Automerge:            repo.DefaultAutomerge,
		}
		if createErr := e.Storage.CreatePullRequest(ctx, &seed); createErr != nil {
			return errors.Wrap(createErr, "create pull request")
		}
	} else if err != nil {
		return errors.Wrap(err, "get pull request")
	}

	return e.UpdateStatus(ctx, handle)
}

// UpdateStatus runs the full ten-step reconcile pass of spec.md §4.1 for
// one PR, guarded by the advisory lock so at most one pass per PR runs
// at a time.
func (e *Engine) UpdateStatus(ctx context.Context, handle domain.Handle) error {
	l, err := e.Locks.WaitLock(ctx, handle.LockKey(), e.LockTimeout)
	if err != nil {
		if _, ok := err.(*lock.TimeoutError); ok {
			e.Log.WithField("pr", handle.String()).Warn("lock timeout, skipping reconcile pass")
			return nil
		}
		return errors.Wrap(err, "acquire lock")
	}
	defer func() {
		if relErr := l.Release(ctx); relErr != nil {
			e.Log.WithError(relErr).Warn("release lock")
		}
	}()

	return e.ReconcileLocked(ctx, handle)
}

// ReconcileLocked runs the same pass as UpdateStatus without acquiring
// the per-PR lock itself. Callers that already hold handle.LockKey() —
// the dispatcher executing commands under spec.md §5's "command
// execution runs under the same per-PR lock as reconciliation" rule —
// call this directly to avoid deadlocking on a non-reentrant lock.
func (e *Engine) ReconcileLocked(ctx context.Context, handle domain.Handle) error {
	repoRow, err := e.Storage.GetRepository(ctx, handle.Owner, handle.Name)
	if storage.IsNotFound(err) {
		e.Log.WithField("pr", handle.String()).Debug("unknown repository, nothing to reconcile")
		return nil
	} else if err != nil {
		return errors.Wrap(err, "get repository")
	}

	pr, err := e.Storage.GetPullRequest(ctx, repoRow.ID, handle.Number)
	if storage.IsNotFound(err) {
		e.Log.WithField("pr", handle.String()).Debug("unknown pull request, nothing to reconcile")
		return nil
	} else if err != nil {
		return errors.Wrap(err, "get pull request")
	}

	requiredReviewers, err := e.Storage.ListRequiredReviewers(ctx, pr.ID)
	if err != nil {
		return errors.Wrap(err, "list required reviewers")
	}

	upstream, err := e.API.GetPullRequest(ctx, handle.Owner, handle.Name, handle.Number)
	if err != nil {
		return errors.Wrap(err, "fetch upstream pull request")
	}

	reviews, err := e.API.ListReviews(ctx, handle.Owner, handle.Name, handle.Number)
	if err != nil {
		return errors.Wrap(err, "list reviews")
	}

	checkSuites, err := e.API.GetCombinedCheckSuites(ctx, handle.Owner, handle.Name, upstream.HeadSHA)
	if err != nil {
		return errors.Wrap(err, "get combined check suites")
	}

	status, err := deriveStatus(*repoRow, *pr, *upstream, reviews, checkSuites, requiredReviewers)
	if err != nil {
		return errors.Wrap(err, "derive status")
	}
	step := status.StepLabel()

	if err := e.syncCommitStatus(ctx, handle, upstream.HeadSHA, step); err != nil {
		return errors.Wrap(err, "sync commit status")
	}

	if err := e.syncSummaryComment(ctx, handle, pr, status, repoRow, requiredReviewers); err != nil {
		return errors.Wrap(err, "sync summary comment")
	}

	if err := e.syncStepLabel(ctx, handle, step); err != nil {
		return errors.Wrap(err, "sync step label")
	}

	if step == domain.StepAwaitingMerge && pr.Automerge {
		if err := e.tryAutomerge(ctx, handle, repoRow, pr, upstream); err != nil {
			return errors.Wrap(err, "automerge")
		}
	}

	return nil
}

// syncCommitStatus writes the commit status for step only if it differs
// from the last one written, the idempotence guard spec.md §4.1 step 6
// requires so untouched PRs generate no upstream API traffic.
func (e *Engine) syncCommitStatus(ctx context.Context, handle domain.Handle, sha string, step domain.StepLabel) error {
	state, description := step.CommitStatus()

	last, err := e.API.GetLastStatus(ctx, handle.Owner, handle.Name, sha, domain.ValidationContext)
	if err != nil {
		return err
	}
	if last != nil && last.State == string(state) && last.Description == description {
		return nil
	}

	return e.API.CreateStatus(ctx, handle.Owner, handle.Name, sha, ghapi.CommitStatus{
		Context:     domain.ValidationContext,
		State:       string(state),
		Description: description,
	})
}

// syncSummaryComment creates the PR's sticky summary comment if it does
// not exist yet, or updates it in place; a 404 on update (the comment
// was deleted out-of-band) is treated per spec.md §4.1 step 7: repost
// once, and a second failure propagates as a real error.
func (e *Engine) syncSummaryComment(ctx context.Context, handle domain.Handle, pr *domain.PullRequest, status domain.PullRequestStatus, repo *domain.Repository, requiredReviewers []string) error {
	body := summary.Render(status, *repo, requiredReviewers)

	if pr.StatusCommentID == 0 {
		id, err := e.API.CreateComment(ctx, handle.Owner, handle.Name, handle.Number, body)
		if err != nil {
			return err
		}
		pr.StatusCommentID = id
		return e.Storage.UpdatePullRequest(ctx, pr)
	}

	err := e.API.UpdateComment(ctx, handle.Owner, handle.Name, pr.StatusCommentID, body)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ghapi.ErrCommentNotFound) {
		return err
	}

	id, err := e.API.CreateComment(ctx, handle.Owner, handle.Name, handle.Number, body)
	if err != nil {
		return err
	}
	pr.StatusCommentID = id
	return e.Storage.UpdatePullRequest(ctx, pr)
}

// syncStepLabel applies step's label and removes every other known step
// label, per spec.md §4.1 step 8. Labels already in the desired state are
// left untouched, so a PR whose label is already correct makes no calls.
func (e *Engine) syncStepLabel(ctx context.Context, handle domain.Handle, step domain.StepLabel) error {
	current, err := e.API.ListLabels(ctx, handle.Owner, handle.Name, handle.Number)
	if err != nil {
		return err
	}
	has := map[string]bool{}
	for _, l := range current {
		has[l] = true
	}

	if !has[string(step)] {
		if err := e.API.AddLabel(ctx, handle.Owner, handle.Name, handle.Number, string(step)); err != nil {
			return err
		}
	}
	for _, other := range domain.AllStepLabels {
		if other == step {
			continue
		}
		if has[string(other)] {
			if err := e.API.RemoveLabel(ctx, handle.Owner, handle.Name, handle.Number, string(other)); err != nil {
				return err
			}
		}
	}
	return nil
}

// tryAutomerge resolves the merge strategy and invokes it, per spec.md
// §4.1 step 9 / §4.6 / §4.7. A MergeRefusedError is demoted to a PR
// comment and the automerge flag is cleared rather than propagated.
func (e *Engine) tryAutomerge(ctx context.Context, handle domain.Handle, repo *domain.Repository, pr *domain.PullRequest, upstream *ghapi.PullRequest) error {
	strategy, err := mergestrategy.Resolve(ctx, e.Storage, *repo, *pr, upstream.BaseRef, upstream.HeadRef)
	if err != nil {
		return err
	}

	err = e.API.Merge(ctx, handle.Owner, handle.Name, handle.Number, ghapi.MergeDetails{
		Strategy: string(strategy),
		SHA:      upstream.HeadSHA,
	})
	if err == nil {
		return nil
	}

	refused, ok := err.(*ghapi.MergeRefusedError)
	if !ok {
		return err
	}

	pr.Automerge = false
	if updErr := e.Storage.UpdatePullRequest(ctx, pr); updErr != nil {
		return updErr
	}
	_, commentErr := e.API.CreateComment(ctx, handle.Owner, handle.Name, handle.Number,
		"Automatic merge was refused: "+refused.Reason+"\n\nAutomerge has been disabled for this pull request.")
	return commentErr
}

// Disable implements spec.md §4.1's disable path: a synthetic success
// commit status (so the PR is not left stuck pending) and removal of the
// sticky summary comment, if one exists. Callers are responsible for any
// storage-row cleanup around this call (e.g. deleting the PullRequest
// row for an admin-disable command).
func (e *Engine) Disable(ctx context.Context, handle domain.Handle, headSHA string, statusCommentID uint64) error {
	if err := e.API.CreateStatus(ctx, handle.Owner, handle.Name, headSHA, ghapi.CommitStatus{
		Context:     domain.ValidationContext,
		State:       string(domain.CommitStatusSuccess),
		Description: "Bot disabled.",
	}); err != nil {
		return err
	}

	if statusCommentID == 0 {
		return nil
	}
	err := e.API.DeleteComment(ctx, handle.Owner, handle.Name, statusCommentID)
	if err != nil && !errors.Is(err, ghapi.ErrCommentNotFound) {
		return err
	}
	return nil
}
