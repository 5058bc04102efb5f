package postgres

// schema is executed once at process start. It matches the relational
// layout from spec.md §6 verbatim.
const schema = `
CREATE TABLE IF NOT EXISTS repository (
	id                              BIGSERIAL PRIMARY KEY,
	owner                           TEXT NOT NULL,
	name                            TEXT NOT NULL,
	manual_interaction              BOOLEAN NOT NULL DEFAULT FALSE,
	pr_title_validation_regex       TEXT NOT NULL DEFAULT '',
	default_strategy                TEXT NOT NULL DEFAULT 'merge',
	default_needed_reviewers_count  BIGINT NOT NULL DEFAULT 0,
	default_automerge               BOOLEAN NOT NULL DEFAULT FALSE,
	default_enable_qa               BOOLEAN NOT NULL DEFAULT TRUE,
	default_enable_checks           BOOLEAN NOT NULL DEFAULT TRUE,
	UNIQUE (owner, name)
);

CREATE TABLE IF NOT EXISTS pull_request (
	id                      BIGSERIAL PRIMARY KEY,
	repository_id           BIGINT NOT NULL REFERENCES repository(id) ON DELETE CASCADE,
	number                  BIGINT NOT NULL,
	qa_status               TEXT NOT NULL DEFAULT 'waiting',
	needed_reviewers_count  BIGINT NOT NULL DEFAULT 0,
	status_comment_id       BIGINT NOT NULL DEFAULT 0,
	checks_enabled          BOOLEAN NOT NULL DEFAULT TRUE,
	automerge               BOOLEAN NOT NULL DEFAULT FALSE,
	locked                  BOOLEAN NOT NULL DEFAULT FALSE,
	lock_reason             TEXT NOT NULL DEFAULT '',
	strategy_override       TEXT,
	UNIQUE (repository_id, number)
);

CREATE TABLE IF NOT EXISTS merge_rule (
	repository_id  BIGINT NOT NULL REFERENCES repository(id) ON DELETE CASCADE,
	base_branch    TEXT NOT NULL,
	head_branch    TEXT NOT NULL,
	strategy       TEXT NOT NULL,
	PRIMARY KEY (repository_id, base_branch, head_branch)
);

CREATE TABLE IF NOT EXISTS required_reviewer (
	pull_request_id  BIGINT NOT NULL REFERENCES pull_request(id) ON DELETE CASCADE,
	username         TEXT NOT NULL,
	PRIMARY KEY (pull_request_id, username)
);

CREATE TABLE IF NOT EXISTS account (
	username  TEXT PRIMARY KEY,
	is_admin  BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS external_account (
	username     TEXT PRIMARY KEY,
	public_key   TEXT NOT NULL,
	private_key  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS external_account_right (
	username       TEXT NOT NULL REFERENCES external_account(username) ON DELETE CASCADE,
	repository_id  BIGINT NOT NULL REFERENCES repository(id) ON DELETE CASCADE,
	PRIMARY KEY (username, repository_id)
);
`
