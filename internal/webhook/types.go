// Package webhook implements C8: the GitHub webhook HTTP endpoint.
// Grounded directly on hook.Server.ServeHTTP/demuxEvent for the
// "validate headers, parse the event-specific payload, dispatch"
// shape, generalized from the teacher's SHA-1 X-Hub-Signature to
// spec.md's SHA-256 X-Hub-Signature-256 and from unbounded
// goroutine-per-event dispatch to a bounded workqueue.Queue.
package webhook

// repositoryPayload is the subset of the GitHub "repository" object
// spec.md §6 enumerates.
type repositoryPayload struct {
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

type userPayload struct {
	Login string `json:"login"`
}

type pullRequestPayload struct {
	Number uint64 `json:"number"`
	Title  string `json:"title"`
	Draft  bool   `json:"draft"`
	Head   struct {
		SHA string `json:"sha"`
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Mergeable bool        `json:"mergeable"`
	Merged    bool        `json:"merged"`
	User      userPayload `json:"user"`
}

type commentPayload struct {
	ID   uint64      `json:"id"`
	Body string      `json:"body"`
	User userPayload `json:"user"`
}

type reviewPayload struct {
	User        userPayload `json:"user"`
	State       string      `json:"state"`
	SubmittedAt string      `json:"submitted_at"`
}

type checkSuitePayload struct {
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HeadSHA    string `json:"head_sha"`
}

// pingEvent is the body of a `ping` webhook delivery.
type pingEvent struct {
	Zen string `json:"zen"`
}

// pullRequestEvent is the body of a `pull_request` webhook delivery.
type pullRequestEvent struct {
	Action      string             `json:"action"`
	Repository  repositoryPayload  `json:"repository"`
	PullRequest pullRequestPayload `json:"pull_request"`
}

// issueCommentEvent is the body of an `issue_comment` webhook delivery.
// GitHub represents a PR comment as an "issue" with a pull_request sub-object.
type issueCommentEvent struct {
	Action     string            `json:"action"`
	Repository repositoryPayload `json:"repository"`
	Comment    commentPayload    `json:"comment"`
	Issue      struct {
		Number      uint64 `json:"number"`
		PullRequest *struct {
			URL string `json:"url"`
		} `json:"pull_request"`
	} `json:"issue"`
}

// pullRequestReviewEvent is the body of a `pull_request_review` webhook delivery.
type pullRequestReviewEvent struct {
	Action      string             `json:"action"`
	Repository  repositoryPayload  `json:"repository"`
	PullRequest pullRequestPayload `json:"pull_request"`
	Review      reviewPayload      `json:"review"`
}

// checkSuiteEvent is the body of a `check_suite` webhook delivery.
type checkSuiteEvent struct {
	Action     string            `json:"action"`
	Repository repositoryPayload `json:"repository"`
	CheckSuite checkSuitePayload `json:"check_suite"`
}
