// Package postgres is the production storage.Interface implementation:
// sqlx over lib/pq against the schema in schema.go, grounded on the
// "Connect establishes a connection and migrates the schema" shape of
// harness-Harness's pkg/store/builtin, adapted from that package's
// BurntSushi/migration+meddler stack to a single embedded-SQL
// CREATE-TABLE-IF-NOT-EXISTS bootstrap (this bot has one schema
// version, not a migration chain).
package postgres

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/storage"
)

// Store is a postgres-backed storage.Interface.
type Store struct {
	db *sqlx.DB
}

// Connect opens a connection pool against dsn and ensures the schema
// exists. Mirrors harness-Harness's builtin.Connect: one call, ready to
// use.
func Connect(dsn string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}
	db.SetMaxOpenConns(maxOpenConns)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Store{db: db}, nil
}

func New(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

var _ storage.Interface = (*Store)(nil)

// --- RepositoryStore ---

func (s *Store) GetRepository(ctx context.Context, owner, name string) (*domain.Repository, error) {
	var r dbRepository
	err := s.db.GetContext(ctx, &r, `SELECT * FROM repository WHERE owner=$1 AND name=$2`, owner, name)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Entity: "repository", Key: owner + "/" + name}
	}
	if err != nil {
		return nil, errors.Wrap(err, "get repository")
	}
	return r.toDomain(), nil
}

func (s *Store) GetRepositoryByID(ctx context.Context, id uint64) (*domain.Repository, error) {
	var r dbRepository
	err := s.db.GetContext(ctx, &r, `SELECT * FROM repository WHERE id=$1`, id)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Entity: "repository", Key: strconv.FormatUint(id, 10)}
	}
	if err != nil {
		return nil, errors.Wrap(err, "get repository by id")
	}
	return r.toDomain(), nil
}

func (s *Store) CreateRepository(ctx context.Context, repo *domain.Repository) error {
	row := fromDomainRepository(repo)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO repository
			(owner, name, manual_interaction, pr_title_validation_regex, default_strategy,
			 default_needed_reviewers_count, default_automerge, default_enable_qa, default_enable_checks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		row.Owner, row.Name, row.ManualInteraction, row.PRTitleValidationRegex, row.DefaultStrategy,
		row.DefaultNeededReviewersCount, row.DefaultAutomerge, row.DefaultEnableQA, row.DefaultEnableChecks,
	).Scan(&repo.ID)
	if err != nil {
		return errors.Wrap(err, "create repository")
	}
	return nil
}

func (s *Store) UpdateRepository(ctx context.Context, repo *domain.Repository) error {
	row := fromDomainRepository(repo)
	res, err := s.db.ExecContext(ctx, `
		UPDATE repository SET owner=$1, name=$2, manual_interaction=$3, pr_title_validation_regex=$4,
			default_strategy=$5, default_needed_reviewers_count=$6, default_automerge=$7,
			default_enable_qa=$8, default_enable_checks=$9
		WHERE id=$10`,
		row.Owner, row.Name, row.ManualInteraction, row.PRTitleValidationRegex, row.DefaultStrategy,
		row.DefaultNeededReviewersCount, row.DefaultAutomerge, row.DefaultEnableQA, row.DefaultEnableChecks,
		repo.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update repository")
	}
	return checkAffected(res, "repository", strconv.FormatUint(repo.ID, 10))
}

func (s *Store) DeleteRepository(ctx context.Context, id uint64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM repository WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "delete repository")
	}
	return checkAffected(res, "repository", strconv.FormatUint(id, 10))
}

func (s *Store) ListRepositories(ctx context.Context) ([]domain.Repository, error) {
	var rows []dbRepository
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM repository ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "list repositories")
	}
	out := make([]domain.Repository, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toDomain())
	}
	return out, nil
}

// --- PullRequestStore ---

func (s *Store) GetPullRequest(ctx context.Context, repositoryID, number uint64) (*domain.PullRequest, error) {
	var r dbPullRequest
	err := s.db.GetContext(ctx, &r, `SELECT * FROM pull_request WHERE repository_id=$1 AND number=$2`, repositoryID, number)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Entity: "pull_request", Key: strconv.FormatUint(repositoryID, 10) + "#" + strconv.FormatUint(number, 10)}
	}
	if err != nil {
		return nil, errors.Wrap(err, "get pull request")
	}
	return r.toDomain(), nil
}

func (s *Store) CreatePullRequest(ctx context.Context, pr *domain.PullRequest) error {
	row := fromDomainPullRequest(pr)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pull_request
			(repository_id, number, qa_status, needed_reviewers_count, status_comment_id,
			 checks_enabled, automerge, locked, lock_reason, strategy_override)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id`,
		row.RepositoryID, row.Number, row.QaStatus, row.NeededReviewersCount, row.StatusCommentID,
		row.ChecksEnabled, row.Automerge, row.Locked, row.LockReason, row.StrategyOverride,
	).Scan(&pr.ID)
	if err != nil {
		return errors.Wrap(err, "create pull request")
	}
	return nil
}

func (s *Store) UpdatePullRequest(ctx context.Context, pr *domain.PullRequest) error {
	row := fromDomainPullRequest(pr)
	res, err := s.db.ExecContext(ctx, `
		UPDATE pull_request SET qa_status=$1, needed_reviewers_count=$2, status_comment_id=$3,
			checks_enabled=$4, automerge=$5, locked=$6, lock_reason=$7, strategy_override=$8
		WHERE id=$9`,
		row.QaStatus, row.NeededReviewersCount, row.StatusCommentID,
		row.ChecksEnabled, row.Automerge, row.Locked, row.LockReason, row.StrategyOverride, pr.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update pull request")
	}
	return checkAffected(res, "pull_request", strconv.FormatUint(pr.ID, 10))
}

func (s *Store) DeletePullRequest(ctx context.Context, id uint64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pull_request WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "delete pull request")
	}
	return checkAffected(res, "pull_request", strconv.FormatUint(id, 10))
}

func (s *Store) ListOpenPullRequests(ctx context.Context, repositoryID uint64) ([]domain.PullRequest, error) {
	var rows []dbPullRequest
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM pull_request WHERE repository_id=$1 ORDER BY number`, repositoryID); err != nil {
		return nil, errors.Wrap(err, "list open pull requests")
	}
	out := make([]domain.PullRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toDomain())
	}
	return out, nil
}

func (s *Store) ListAllPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	var rows []dbPullRequest
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM pull_request ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "list all pull requests")
	}
	out := make([]domain.PullRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toDomain())
	}
	return out, nil
}

// --- MergeRuleStore ---

func (s *Store) GetMergeRule(ctx context.Context, repositoryID uint64, base, head domain.RuleBranch) (*domain.MergeRule, error) {
	var r dbMergeRule
	err := s.db.GetContext(ctx, &r, `SELECT * FROM merge_rule WHERE repository_id=$1 AND base_branch=$2 AND head_branch=$3`,
		repositoryID, base.String(), head.String())
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Entity: "merge_rule", Key: base.String() + "->" + head.String()}
	}
	if err != nil {
		return nil, errors.Wrap(err, "get merge rule")
	}
	return r.toDomain(), nil
}

func (s *Store) SetMergeRule(ctx context.Context, rule domain.MergeRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merge_rule (repository_id, base_branch, head_branch, strategy)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (repository_id, base_branch, head_branch) DO UPDATE SET strategy=EXCLUDED.strategy`,
		rule.RepositoryID, rule.Base.String(), rule.Head.String(), string(rule.Strategy))
	if err != nil {
		return errors.Wrap(err, "set merge rule")
	}
	return nil
}

func (s *Store) DeleteMergeRule(ctx context.Context, repositoryID uint64, base, head domain.RuleBranch) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM merge_rule WHERE repository_id=$1 AND base_branch=$2 AND head_branch=$3`,
		repositoryID, base.String(), head.String())
	if err != nil {
		return errors.Wrap(err, "delete merge rule")
	}
	return nil
}

func (s *Store) ListMergeRules(ctx context.Context, repositoryID uint64) ([]domain.MergeRule, error) {
	var rows []dbMergeRule
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM merge_rule WHERE repository_id=$1`, repositoryID); err != nil {
		return nil, errors.Wrap(err, "list merge rules")
	}
	out := make([]domain.MergeRule, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toDomain())
	}
	return out, nil
}

// --- RequiredReviewerStore ---

func (s *Store) AddRequiredReviewer(ctx context.Context, pullRequestID uint64, username string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO required_reviewer (pull_request_id, username) VALUES ($1,$2)
		ON CONFLICT DO NOTHING`, pullRequestID, username)
	return errors.Wrap(err, "add required reviewer")
}

func (s *Store) RemoveRequiredReviewer(ctx context.Context, pullRequestID uint64, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM required_reviewer WHERE pull_request_id=$1 AND username=$2`, pullRequestID, username)
	return errors.Wrap(err, "remove required reviewer")
}

func (s *Store) ListRequiredReviewers(ctx context.Context, pullRequestID uint64) ([]string, error) {
	var out []string
	err := s.db.SelectContext(ctx, &out, `SELECT username FROM required_reviewer WHERE pull_request_id=$1`, pullRequestID)
	return out, errors.Wrap(err, "list required reviewers")
}

// --- AccountStore ---

func (s *Store) GetAccount(ctx context.Context, username string) (*domain.Account, error) {
	var a domain.Account
	err := s.db.GetContext(ctx, &a, `SELECT username, is_admin FROM account WHERE username=$1`, username)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Entity: "account", Key: username}
	}
	if err != nil {
		return nil, errors.Wrap(err, "get account")
	}
	return &a, nil
}

func (s *Store) UpsertAccount(ctx context.Context, account domain.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account (username, is_admin) VALUES ($1,$2)
		ON CONFLICT (username) DO UPDATE SET is_admin=EXCLUDED.is_admin`, account.Username, account.IsAdmin)
	return errors.Wrap(err, "upsert account")
}

func (s *Store) DeleteAccount(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM account WHERE username=$1`, username)
	return errors.Wrap(err, "delete account")
}

func (s *Store) ListAccounts(ctx context.Context, adminOnly bool) ([]domain.Account, error) {
	q := `SELECT username, is_admin FROM account`
	if adminOnly {
		q += ` WHERE is_admin`
	}
	var out []domain.Account
	err := s.db.SelectContext(ctx, &out, q)
	return out, errors.Wrap(err, "list accounts")
}

// --- ExternalAccountStore ---

func (s *Store) GetExternalAccount(ctx context.Context, username string) (*domain.ExternalAccount, error) {
	var a domain.ExternalAccount
	err := s.db.GetContext(ctx, &a, `SELECT username, public_key, private_key FROM external_account WHERE username=$1`, username)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Entity: "external_account", Key: username}
	}
	if err != nil {
		return nil, errors.Wrap(err, "get external account")
	}
	return &a, nil
}

func (s *Store) CreateExternalAccount(ctx context.Context, account domain.ExternalAccount) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO external_account (username, public_key, private_key) VALUES ($1,$2,$3)`,
		account.Username, account.PublicKey, account.PrivateKey)
	return errors.Wrap(err, "create external account")
}

func (s *Store) DeleteExternalAccount(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM external_account WHERE username=$1`, username)
	return errors.Wrap(err, "delete external account")
}

func (s *Store) ListExternalAccounts(ctx context.Context) ([]domain.ExternalAccount, error) {
	var out []domain.ExternalAccount
	err := s.db.SelectContext(ctx, &out, `SELECT username, public_key, private_key FROM external_account`)
	return out, errors.Wrap(err, "list external accounts")
}

// --- ExternalAccountRightStore ---

func (s *Store) GrantRight(ctx context.Context, username string, repositoryID uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO external_account_right (username, repository_id) VALUES ($1,$2)
		ON CONFLICT DO NOTHING`, username, repositoryID)
	return errors.Wrap(err, "grant right")
}

func (s *Store) RevokeRight(ctx context.Context, username string, repositoryID uint64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM external_account_right WHERE username=$1 AND repository_id=$2`, username, repositoryID)
	return errors.Wrap(err, "revoke right")
}

func (s *Store) RevokeAllRights(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM external_account_right WHERE username=$1`, username)
	return errors.Wrap(err, "revoke all rights")
}

func (s *Store) HasRight(ctx context.Context, username string, repositoryID uint64) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM external_account_right WHERE username=$1 AND repository_id=$2`, username, repositoryID)
	if err != nil {
		return false, errors.Wrap(err, "has right")
	}
	return count > 0, nil
}

func (s *Store) ListRights(ctx context.Context, username string) ([]domain.ExternalAccountRight, error) {
	var rows []struct {
		Username     string `db:"username"`
		RepositoryID uint64 `db:"repository_id"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT username, repository_id FROM external_account_right WHERE username=$1`, username); err != nil {
		return nil, errors.Wrap(err, "list rights")
	}
	out := make([]domain.ExternalAccountRight, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ExternalAccountRight{Username: r.Username, RepositoryID: r.RepositoryID})
	}
	return out, nil
}

func checkAffected(res sql.Result, entity, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return &storage.NotFoundError{Entity: entity, Key: key}
	}
	return nil
}

