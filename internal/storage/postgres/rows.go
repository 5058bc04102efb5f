package postgres

import "github.com/scbot-go/scbot/internal/domain"

// dbRepository mirrors the repository table layout; sqlx scans into it by
// column name.
type dbRepository struct {
	ID                          uint64 `db:"id"`
	Owner                       string `db:"owner"`
	Name                        string `db:"name"`
	ManualInteraction           bool   `db:"manual_interaction"`
	PRTitleValidationRegex      string `db:"pr_title_validation_regex"`
	DefaultStrategy             string `db:"default_strategy"`
	DefaultNeededReviewersCount uint64 `db:"default_needed_reviewers_count"`
	DefaultAutomerge            bool   `db:"default_automerge"`
	DefaultEnableQA             bool   `db:"default_enable_qa"`
	DefaultEnableChecks         bool   `db:"default_enable_checks"`
}

func (r dbRepository) toDomain() *domain.Repository {
	return &domain.Repository{
		ID:                          r.ID,
		Owner:                       r.Owner,
		Name:                        r.Name,
		ManualInteraction:           r.ManualInteraction,
		PRTitleValidationRegex:      r.PRTitleValidationRegex,
		DefaultStrategy:             domain.MergeStrategy(r.DefaultStrategy),
		DefaultNeededReviewersCount: r.DefaultNeededReviewersCount,
		DefaultAutomerge:            r.DefaultAutomerge,
		DefaultEnableQA:             r.DefaultEnableQA,
		DefaultEnableChecks:         r.DefaultEnableChecks,
	}
}

func fromDomainRepository(r *domain.Repository) dbRepository {
	return dbRepository{
		ID:                          r.ID,
		Owner:                       r.Owner,
		Name:                        r.Name,
		ManualInteraction:           r.ManualInteraction,
		PRTitleValidationRegex:      r.PRTitleValidationRegex,
		DefaultStrategy:             string(r.DefaultStrategy),
		DefaultNeededReviewersCount: r.DefaultNeededReviewersCount,
		DefaultAutomerge:            r.DefaultAutomerge,
		DefaultEnableQA:             r.DefaultEnableQA,
		DefaultEnableChecks:         r.DefaultEnableChecks,
	}
}

type dbPullRequest struct {
	ID                   uint64  `db:"id"`
	RepositoryID         uint64  `db:"repository_id"`
	Number               uint64  `db:"number"`
	QaStatus             string  `db:"qa_status"`
	NeededReviewersCount uint64  `db:"needed_reviewers_count"`
	StatusCommentID      uint64  `db:"status_comment_id"`
	ChecksEnabled        bool    `db:"checks_enabled"`
	Automerge            bool    `db:"automerge"`
	Locked               bool    `db:"locked"`
	LockReason           string  `db:"lock_reason"`
	StrategyOverride     *string `db:"strategy_override"`
}

func (r dbPullRequest) toDomain() *domain.PullRequest {
	pr := &domain.PullRequest{
		ID:                   r.ID,
		RepositoryID:         r.RepositoryID,
		Number:               r.Number,
		QaStatus:             domain.QaStatus(r.QaStatus),
		NeededReviewersCount: r.NeededReviewersCount,
		StatusCommentID:      r.StatusCommentID,
		ChecksEnabled:        r.ChecksEnabled,
		Automerge:            r.Automerge,
		Locked:               r.Locked,
		LockReason:           r.LockReason,
	}
	if r.StrategyOverride != nil {
		s := domain.MergeStrategy(*r.StrategyOverride)
		pr.StrategyOverride = &s
	}
	return pr
}

func fromDomainPullRequest(pr *domain.PullRequest) dbPullRequest {
	row := dbPullRequest{
		ID:                   pr.ID,
		RepositoryID:         pr.RepositoryID,
		Number:               pr.Number,
		QaStatus:             string(pr.QaStatus),
		NeededReviewersCount: pr.NeededReviewersCount,
		StatusCommentID:      pr.StatusCommentID,
		ChecksEnabled:        pr.ChecksEnabled,
		Automerge:            pr.Automerge,
		Locked:               pr.Locked,
		LockReason:           pr.LockReason,
	}
	if pr.StrategyOverride != nil {
		s := string(*pr.StrategyOverride)
		row.StrategyOverride = &s
	}
	return row
}

type dbMergeRule struct {
	RepositoryID uint64 `db:"repository_id"`
	BaseBranch   string `db:"base_branch"`
	HeadBranch   string `db:"head_branch"`
	Strategy     string `db:"strategy"`
}

func branchFromString(s string) domain.RuleBranch {
	if s == "*" {
		return domain.WildcardBranch()
	}
	return domain.NamedBranch(s)
}

func (r dbMergeRule) toDomain() *domain.MergeRule {
	return &domain.MergeRule{
		RepositoryID: r.RepositoryID,
		Base:         branchFromString(r.BaseBranch),
		Head:         branchFromString(r.HeadBranch),
		Strategy:     domain.MergeStrategy(r.Strategy),
	}
}
