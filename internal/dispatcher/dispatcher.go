package dispatcher

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/engine"
	"github.com/scbot-go/scbot/internal/ghapi"
	"github.com/scbot-go/scbot/internal/lock"
	"github.com/scbot-go/scbot/internal/storage"
)

type handlerFunc func(ec *execContext) (CommandExecutionResult, error)

// execContext is threaded through the handler for one matched verb
// line; it is built anew for each line, while the repo and pr pointers
// it carries are shared across all lines of one comment.
type execContext struct {
	ctx      context.Context
	handle   domain.Handle
	username string
	args     []string

	repo     *domain.Repository
	pr       *domain.PullRequest
	upstream *ghapi.PullRequest

	isAdmin bool
}

// Dispatcher owns the verb table and the storage/API/engine/lock
// dependencies every handler needs.
type Dispatcher struct {
	Storage     storage.Interface
	API         ghapi.Client
	Engine      *engine.Engine
	Locks       lock.Service
	LockTimeout time.Duration
	Gif         GifSearch
	Log         *logrus.Entry

	handlers map[string]handlerFunc
}

// New builds a Dispatcher with the full spec.md §4.2 verb table
// registered, mirroring the teacher's init()-time plugin registration
// but into one process-wide map since this bot's verbs are fixed.
func New(store storage.Interface, api ghapi.Client, eng *engine.Engine, locks lock.Service, lockTimeout time.Duration, gif GifSearch, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	d := &Dispatcher{Storage: store, API: api, Engine: eng, Locks: locks, LockTimeout: lockTimeout, Gif: gif, Log: log}
	d.handlers = map[string]handlerFunc{
		"ping":                 d.handlePing,
		"help":                 d.handleHelp,
		"gif":                  d.handleGif,
		"noqa+":                d.handleNoQAPlus,
		"noqa-":                d.handleNoQAMinus,
		"qa+":                  d.handleQAPlus,
		"qa-":                  d.handleQAMinus,
		"qa?":                  d.handleQAQuestion,
		"nochecks+":            d.handleNoChecksPlus,
		"nochecks-":            d.handleNoChecksMinus,
		"automerge+":           d.handleAutomergePlus,
		"automerge-":           d.handleAutomergeMinus,
		"lock+":                d.handleLockPlus,
		"lock-":                d.handleLockMinus,
		"req+":                 d.handleReqPlus,
		"req-":                 d.handleReqMinus,
		"strategy+":            d.handleStrategyPlus,
		"strategy-":            d.handleStrategyMinus,
		"merge":                d.handleMerge,
		"labels+":              d.handleLabelsPlus,
		"labels-":              d.handleLabelsMinus,
		"is-admin":             d.handleIsAdmin,
		"admin-help":           d.handleAdminHelp,
		"admin-sync":           d.handleAdminSync,
		"admin-disable":        d.handleAdminDisable,
		"admin-reset-summary":  d.handleAdminResetSummary,
	}
	return d
}

// verbScopeOf implements spec.md §4.2's scope column: only the
// `admin-*` family requires is_admin. `is-admin` itself is a user-scope
// query, subject to the same author/admin/write-permission check as the
// other user verbs.
func verbScopeOf(verb string) verbScope {
	if strings.HasPrefix(verb, "admin-") {
		return scopeAdmin
	}
	return scopeUser
}

// HandleComment implements spec.md §4.2 end to end: it is invoked by the
// webhook ingress for an `issue_comment` `created` event on a PR. All
// matched verb lines run under the same per-PR lock as reconciliation,
// per spec.md §5, via engine.ReconcileLocked rather than a re-acquiring
// engine.UpdateStatus call.
func (d *Dispatcher) HandleComment(ctx context.Context, handle domain.Handle, botUsername string, commentID uint64, commentAuthor, commentBody string) error {
	l, err := d.Locks.WaitLock(ctx, handle.LockKey(), d.LockTimeout)
	if err != nil {
		if _, ok := err.(*lock.TimeoutError); ok {
			d.Log.WithField("pr", handle.String()).Warn("lock timeout, dropping comment")
			return nil
		}
		return errors.Wrap(err, "acquire lock")
	}
	defer func() {
		if relErr := l.Release(ctx); relErr != nil {
			d.Log.WithError(relErr).Warn("release lock")
		}
	}()

	lines := matchedLines(commentBody, botUsername)
	if len(lines) == 0 {
		return nil
	}

	repo, err := d.Storage.GetRepository(ctx, handle.Owner, handle.Name)
	if err != nil {
		return errors.Wrap(err, "get repository")
	}
	pr, err := d.Storage.GetPullRequest(ctx, repo.ID, handle.Number)
	if err != nil {
		return errors.Wrap(err, "get pull request")
	}
	upstream, err := d.API.GetPullRequest(ctx, handle.Owner, handle.Name, handle.Number)
	if err != nil {
		return errors.Wrap(err, "fetch upstream pull request")
	}

	account, err := d.Storage.GetAccount(ctx, commentAuthor)
	isAdmin := err == nil && account.IsAdmin

	shouldUpdateStatus := false
	var actions []ResultAction

	for _, line := range lines {
		verb, args := parseVerbLine(line)
		result, err := d.execute(ctx, handle, repo, pr, upstream, commentAuthor, isAdmin, verb, args)
		if err != nil {
			return errors.Wrapf(err, "execute verb %q", verb)
		}
		actions = append(actions, result.Actions...)
		if result.ShouldUpdateStatus {
			shouldUpdateStatus = true
		}
	}

	if err := d.applyActions(ctx, handle, commentID, actions); err != nil {
		return errors.Wrap(err, "apply actions")
	}

	if shouldUpdateStatus {
		return d.Engine.ReconcileLocked(ctx, handle)
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, handle domain.Handle, repo *domain.Repository, pr *domain.PullRequest, upstream *ghapi.PullRequest, username string, isAdmin bool, verb string, args []string) (CommandExecutionResult, error) {
	handler, ok := d.handlers[verb]
	if !ok && strings.HasPrefix(verb, "admin-set-") {
		sub := strings.TrimPrefix(verb, "admin-set-")
		handler = func(ec *execContext) (CommandExecutionResult, error) {
			return d.handleAdminSet(ec, sub)
		}
		ok = true
	}
	if !ok {
		return CommandExecutionResult{
			Actions: []ResultAction{
				postComment("Unknown command `" + verb + "`. Try `help`."),
				addReaction(domain.ReactionConfused),
			},
		}, nil
	}

	authorized, err := d.authorize(ctx, handle.Owner, handle.Name, username, upstream.Author, isAdmin, verbScopeOf(verb))
	if err != nil {
		return CommandExecutionResult{}, err
	}
	if !authorized {
		return denied(), nil
	}

	ec := &execContext{
		ctx: ctx, handle: handle, username: username, args: args,
		repo: repo, pr: pr, upstream: upstream, isAdmin: isAdmin,
	}
	return handler(ec)
}

// authorize implements spec.md §4.2: admin verbs require is_admin;
// everything else requires PR authorship, admin, or write permission.
func (d *Dispatcher) authorize(ctx context.Context, owner, name, username, prAuthor string, isAdmin bool, scope verbScope) (bool, error) {
	if scope == scopeAdmin {
		return isAdmin, nil
	}
	if isAdmin || username == prAuthor {
		return true, nil
	}
	return d.API.HasWritePermission(ctx, owner, name, username)
}

// applyActions posts comments and attaches reactions to the comment that
// triggered the command, per spec.md §4.2 ("the dispatcher posts
// comments, applies reactions").
func (d *Dispatcher) applyActions(ctx context.Context, handle domain.Handle, commentID uint64, actions []ResultAction) error {
	for _, a := range actions {
		switch a.Kind {
		case ActionPostComment:
			if _, err := d.API.CreateComment(ctx, handle.Owner, handle.Name, handle.Number, a.Comment); err != nil {
				return err
			}
		case ActionAddReaction:
			if err := d.API.AddReaction(ctx, handle.Owner, handle.Name, commentID, string(a.Reaction)); err != nil {
				return err
			}
		}
	}
	return nil
}

// matchedLines returns every line of body prefixed with "@{botUsername} ",
// with the prefix stripped, per spec.md §4.2.
func matchedLines(body, botUsername string) []string {
	prefix := "@" + botUsername + " "
	var out []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, prefix) {
			out = append(out, strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)))
		}
	}
	return out
}

// parseVerbLine tokenizes a matched line's remainder into a verb and its
// argument tail.
func parseVerbLine(line string) (verb string, args []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
