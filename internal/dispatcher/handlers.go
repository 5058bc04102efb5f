package dispatcher

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/ghapi"
	"github.com/scbot-go/scbot/internal/mergestrategy"
)

func ok(actions ...ResultAction) (CommandExecutionResult, error) {
	return CommandExecutionResult{ShouldUpdateStatus: false, Actions: actions}, nil
}

func okUpdate(actions ...ResultAction) (CommandExecutionResult, error) {
	return CommandExecutionResult{ShouldUpdateStatus: true, Actions: actions}, nil
}

func (d *Dispatcher) handlePing(ec *execContext) (CommandExecutionResult, error) {
	return ok(postComment("pong"), addReaction(domain.ReactionEyes))
}

func (d *Dispatcher) handleHelp(ec *execContext) (CommandExecutionResult, error) {
	return ok(postComment(helpText))
}

func (d *Dispatcher) handleGif(ec *execContext) (CommandExecutionResult, error) {
	if d.Gif == nil {
		return ok(postComment("GIF search is not configured."))
	}
	if len(ec.args) == 0 {
		return ok(postComment("Usage: `gif <query>`"))
	}
	url, err := d.Gif.Search(ec.ctx, strings.Join(ec.args, " "))
	if err != nil {
		return ok(postComment("GIF search failed: " + err.Error()))
	}
	if url == "" {
		return ok(postComment("No GIF found for `" + strings.Join(ec.args, " ") + "`."))
	}
	return ok(postComment(url))
}

func (d *Dispatcher) handleNoQAPlus(ec *execContext) (CommandExecutionResult, error) {
	return d.setQAStatus(ec, domain.QaSkipped)
}

func (d *Dispatcher) handleNoQAMinus(ec *execContext) (CommandExecutionResult, error) {
	return d.setQAStatus(ec, domain.QaWaiting)
}

func (d *Dispatcher) handleQAPlus(ec *execContext) (CommandExecutionResult, error) {
	return d.setQAStatus(ec, domain.QaPass)
}

func (d *Dispatcher) handleQAMinus(ec *execContext) (CommandExecutionResult, error) {
	return d.setQAStatus(ec, domain.QaFail)
}

func (d *Dispatcher) handleQAQuestion(ec *execContext) (CommandExecutionResult, error) {
	return d.setQAStatus(ec, domain.QaWaiting)
}

func (d *Dispatcher) setQAStatus(ec *execContext, status domain.QaStatus) (CommandExecutionResult, error) {
	ec.pr.QaStatus = status
	if err := d.Storage.UpdatePullRequest(ec.ctx, ec.pr); err != nil {
		return CommandExecutionResult{}, err
	}
	return okUpdate()
}

func (d *Dispatcher) handleNoChecksPlus(ec *execContext) (CommandExecutionResult, error) {
	ec.pr.ChecksEnabled = false
	if err := d.Storage.UpdatePullRequest(ec.ctx, ec.pr); err != nil {
		return CommandExecutionResult{}, err
	}
	return okUpdate()
}

func (d *Dispatcher) handleNoChecksMinus(ec *execContext) (CommandExecutionResult, error) {
	ec.pr.ChecksEnabled = true
	if err := d.Storage.UpdatePullRequest(ec.ctx, ec.pr); err != nil {
		return CommandExecutionResult{}, err
	}
	return okUpdate()
}

func (d *Dispatcher) handleAutomergePlus(ec *execContext) (CommandExecutionResult, error) {
	ec.pr.Automerge = true
	if err := d.Storage.UpdatePullRequest(ec.ctx, ec.pr); err != nil {
		return CommandExecutionResult{}, err
	}
	return okUpdate()
}

func (d *Dispatcher) handleAutomergeMinus(ec *execContext) (CommandExecutionResult, error) {
	ec.pr.Automerge = false
	if err := d.Storage.UpdatePullRequest(ec.ctx, ec.pr); err != nil {
		return CommandExecutionResult{}, err
	}
	return okUpdate()
}

func (d *Dispatcher) handleLockPlus(ec *execContext) (CommandExecutionResult, error) {
	ec.pr.Locked = true
	ec.pr.LockReason = strings.Join(ec.args, " ")
	if err := d.Storage.UpdatePullRequest(ec.ctx, ec.pr); err != nil {
		return CommandExecutionResult{}, err
	}
	return okUpdate()
}

func (d *Dispatcher) handleLockMinus(ec *execContext) (CommandExecutionResult, error) {
	ec.pr.Locked = false
	ec.pr.LockReason = ""
	if err := d.Storage.UpdatePullRequest(ec.ctx, ec.pr); err != nil {
		return CommandExecutionResult{}, err
	}
	return okUpdate()
}

func (d *Dispatcher) handleReqPlus(ec *execContext) (CommandExecutionResult, error) {
	for _, user := range ec.args {
		if err := d.Storage.AddRequiredReviewer(ec.ctx, ec.pr.ID, strings.TrimPrefix(user, "@")); err != nil {
			return CommandExecutionResult{}, err
		}
	}
	return okUpdate()
}

func (d *Dispatcher) handleReqMinus(ec *execContext) (CommandExecutionResult, error) {
	for _, user := range ec.args {
		if err := d.Storage.RemoveRequiredReviewer(ec.ctx, ec.pr.ID, strings.TrimPrefix(user, "@")); err != nil {
			return CommandExecutionResult{}, err
		}
	}
	return okUpdate()
}

func (d *Dispatcher) handleStrategyPlus(ec *execContext) (CommandExecutionResult, error) {
	if len(ec.args) != 1 {
		return ok(postComment("Usage: `strategy+ <merge|squash|rebase>`"))
	}
	strategy := domain.MergeStrategy(ec.args[0])
	if !strategy.Valid() {
		return ok(postComment("Unknown merge strategy `" + ec.args[0] + "`."))
	}
	ec.pr.StrategyOverride = &strategy
	if err := d.Storage.UpdatePullRequest(ec.ctx, ec.pr); err != nil {
		return CommandExecutionResult{}, err
	}
	return okUpdate()
}

func (d *Dispatcher) handleStrategyMinus(ec *execContext) (CommandExecutionResult, error) {
	ec.pr.StrategyOverride = nil
	if err := d.Storage.UpdatePullRequest(ec.ctx, ec.pr); err != nil {
		return CommandExecutionResult{}, err
	}
	return okUpdate()
}

func (d *Dispatcher) handleMerge(ec *execContext) (CommandExecutionResult, error) {
	strategy := domain.MergeStrategy("")
	if len(ec.args) == 1 {
		strategy = domain.MergeStrategy(ec.args[0])
		if !strategy.Valid() {
			return ok(postComment("Unknown merge strategy `" + ec.args[0] + "`."))
		}
	} else {
		resolved, err := mergestrategy.Resolve(ec.ctx, d.Storage, *ec.repo, *ec.pr, ec.upstream.BaseRef, ec.upstream.HeadRef)
		if err != nil {
			return CommandExecutionResult{}, err
		}
		strategy = resolved
	}

	err := d.API.Merge(ec.ctx, ec.handle.Owner, ec.handle.Name, ec.handle.Number, ghapi.MergeDetails{
		Strategy: string(strategy),
		SHA:      ec.upstream.HeadSHA,
	})
	if err == nil {
		return okUpdate(postComment("Merged with strategy `" + string(strategy) + "`."))
	}
	if refused, isRefused := err.(*ghapi.MergeRefusedError); isRefused {
		return okUpdate(postComment("Merge refused: " + refused.Reason))
	}
	return CommandExecutionResult{}, err
}

func (d *Dispatcher) handleLabelsPlus(ec *execContext) (CommandExecutionResult, error) {
	for _, label := range ec.args {
		if err := d.API.AddLabel(ec.ctx, ec.handle.Owner, ec.handle.Name, ec.handle.Number, label); err != nil {
			return CommandExecutionResult{}, err
		}
	}
	return ok()
}

func (d *Dispatcher) handleLabelsMinus(ec *execContext) (CommandExecutionResult, error) {
	for _, label := range ec.args {
		if err := d.API.RemoveLabel(ec.ctx, ec.handle.Owner, ec.handle.Name, ec.handle.Number, label); err != nil {
			return CommandExecutionResult{}, err
		}
	}
	return ok()
}

func (d *Dispatcher) handleIsAdmin(ec *execContext) (CommandExecutionResult, error) {
	if ec.isAdmin {
		return ok(addReaction(domain.ReactionThumbsUp))
	}
	return ok(addReaction(domain.ReactionThumbsDown))
}

func (d *Dispatcher) handleAdminHelp(ec *execContext) (CommandExecutionResult, error) {
	return ok(postComment(adminHelpText))
}

func (d *Dispatcher) handleAdminSync(ec *execContext) (CommandExecutionResult, error) {
	return okUpdate()
}

func (d *Dispatcher) handleAdminDisable(ec *execContext) (CommandExecutionResult, error) {
	if !ec.repo.ManualInteraction {
		return CommandExecutionResult{
			Denied:             true,
			ShouldUpdateStatus: false,
			Actions: []ResultAction{
				addReaction(domain.ReactionMinusOne),
				postComment("You can not disable the bot on this PR, the repository is not in manual interaction mode."),
			},
		}, nil
	}

	if err := d.Engine.Disable(ec.ctx, ec.handle, ec.upstream.HeadSHA, ec.pr.StatusCommentID); err != nil {
		return CommandExecutionResult{}, err
	}
	if err := d.Storage.DeletePullRequest(ec.ctx, ec.pr.ID); err != nil {
		return CommandExecutionResult{}, err
	}
	return CommandExecutionResult{
		ShouldUpdateStatus: false,
		Actions: []ResultAction{
			addReaction(domain.ReactionEyes),
			postComment("Bot disabled on this PR. Bye!"),
		},
	}, nil
}

func (d *Dispatcher) handleAdminResetSummary(ec *execContext) (CommandExecutionResult, error) {
	old := ec.pr.StatusCommentID
	ec.pr.StatusCommentID = 0
	if err := d.Storage.UpdatePullRequest(ec.ctx, ec.pr); err != nil {
		return CommandExecutionResult{}, err
	}
	if old != 0 {
		if err := d.API.DeleteComment(ec.ctx, ec.handle.Owner, ec.handle.Name, old); err != nil && !errors.Is(err, ghapi.ErrCommentNotFound) {
			return CommandExecutionResult{}, err
		}
	}
	return okUpdate()
}

// handleAdminSet implements the `admin-set-*` family of spec.md §4.2:
// repository-level defaults for PRs created from now on.
func (d *Dispatcher) handleAdminSet(ec *execContext, sub string) (CommandExecutionResult, error) {
	if len(ec.args) == 0 && sub != "manual-interaction" {
		return ok(postComment("Usage: `admin-set-" + sub + " <value>`"))
	}

	switch sub {
	case "needed-reviewers":
		n, err := strconv.ParseUint(ec.args[0], 10, 64)
		if err != nil {
			return ok(postComment("Invalid count: " + ec.args[0]))
		}
		ec.repo.DefaultNeededReviewersCount = n
	case "strategy":
		strategy := domain.MergeStrategy(ec.args[0])
		if !strategy.Valid() {
			return ok(postComment("Unknown merge strategy `" + ec.args[0] + "`."))
		}
		ec.repo.DefaultStrategy = strategy
	case "title-regex":
		ec.repo.PRTitleValidationRegex = strings.Join(ec.args, " ")
	case "manual-interaction":
		ec.repo.ManualInteraction = len(ec.args) == 0 || ec.args[0] != "off"
	case "qa":
		ec.repo.DefaultEnableQA = ec.args[0] != "off"
	case "checks":
		ec.repo.DefaultEnableChecks = ec.args[0] != "off"
	case "automerge":
		ec.repo.DefaultAutomerge = ec.args[0] != "off"
	default:
		return ok(postComment("Unknown admin-set option `" + sub + "`."))
	}

	if err := d.Storage.UpdateRepository(ec.ctx, ec.repo); err != nil {
		return CommandExecutionResult{}, err
	}
	return ok(postComment("Updated."))
}

const helpText = "Commands: ping, help, gif <query>, qa+/qa-/qa?, noqa+/noqa-, " +
	"nochecks+/nochecks-, automerge+/automerge-, lock+ [reason]/lock-, " +
	"req+ <users>/req- <users>, strategy+ <name>/strategy-, merge [strategy], " +
	"labels+ <labels>/labels- <labels>, is-admin."

const adminHelpText = "Admin commands: admin-help, admin-sync, admin-disable, " +
	"admin-reset-summary, admin-set-needed-reviewers <n>, admin-set-strategy <name>, " +
	"admin-set-title-regex <regex>, admin-set-manual-interaction <on|off>, " +
	"admin-set-qa <on|off>, admin-set-checks <on|off>, admin-set-automerge <on|off>."
