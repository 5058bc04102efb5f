// Package dispatcher implements C7: parsing `@{bot} <verb> <args>` lines
// out of issue comments, authorizing and running the matching handler,
// and applying the resulting reactions/comments — grounded on
// plugins/trigger.go's "getClient(pc), handle, then report" shape,
// generalized from the teacher's per-repo plugin manifest to a single
// process-wide verb table since this bot's command set is fixed.
package dispatcher

import (
	"context"

	"github.com/scbot-go/scbot/internal/domain"
)

// ResultActionKind tags a ResultAction's payload.
type ResultActionKind string

const (
	ActionAddReaction ResultActionKind = "add_reaction"
	ActionPostComment ResultActionKind = "post_comment"
)

// ResultAction is one side effect a handler asks the dispatcher to apply
// after every command on a comment has run, per spec.md §4.2.
type ResultAction struct {
	Kind     ResultActionKind
	Reaction domain.ReactionKind
	Comment  string
}

func addReaction(kind domain.ReactionKind) ResultAction {
	return ResultAction{Kind: ActionAddReaction, Reaction: kind}
}

func postComment(text string) ResultAction {
	return ResultAction{Kind: ActionPostComment, Comment: text}
}

// CommandExecutionResult is a single handler's verdict, per spec.md §4.2.
type CommandExecutionResult struct {
	Denied             bool
	ShouldUpdateStatus bool
	Actions            []ResultAction
}

func denied() CommandExecutionResult {
	return CommandExecutionResult{Denied: true, Actions: []ResultAction{addReaction(domain.ReactionMinusOne)}}
}

// verbScope distinguishes the admin verb family from everything else,
// per spec.md §4.2's authorization table.
type verbScope string

const (
	scopeUser  verbScope = "user"
	scopeAdmin verbScope = "admin"
)

// GifSearch is the narrow dependency the `gif <query>` verb needs,
// implemented by internal/tenor.Client.
type GifSearch interface {
	Search(ctx context.Context, query string) (url string, err error)
}
