package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/scbot-go/scbot/internal/crypto"
	"github.com/scbot-go/scbot/internal/dispatcher"
	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/engine"
	"github.com/scbot-go/scbot/internal/ghapi"
	"github.com/scbot-go/scbot/internal/storage"
	"github.com/scbot-go/scbot/internal/workqueue"
)

const welcomeComment = "Thanks for the pull request! The bot will keep its status comment below up to date."

// knownEvents is the event set spec.md §4.3 enumerates; anything else is
// logged and answered 200 without further processing.
var knownEvents = map[string]bool{
	"ping":                true,
	"check_suite":         true,
	"issue_comment":       true,
	"pull_request":        true,
	"pull_request_review": true,
}

// Server is the webhook HTTP ingress.
type Server struct {
	Engine     *engine.Engine
	Dispatcher *dispatcher.Dispatcher
	Storage    storage.Interface
	API        ghapi.Client
	Queue      *workqueue.Queue
	Log        *logrus.Entry

	BotUsername            string
	WebhookSecret          string
	DisableWelcomeComments bool

	counter WebhookCounter
}

// WebhookCounter is incremented once per delivery, labeled by event
// type, feeding a metrics package's counter without this package
// depending on prometheus directly.
type WebhookCounter interface {
	Inc(eventType string)
}

type noopWebhookCounter struct{}

func (noopWebhookCounter) Inc(string) {}

// New builds a Server. counter may be nil.
func New(eng *engine.Engine, disp *dispatcher.Dispatcher, store storage.Interface, api ghapi.Client, queue *workqueue.Queue, botUsername, webhookSecret string, disableWelcomeComments bool, counter WebhookCounter, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if counter == nil {
		counter = noopWebhookCounter{}
	}
	return &Server{
		Engine: eng, Dispatcher: disp, Storage: store, API: api, Queue: queue,
		BotUsername: botUsername, WebhookSecret: webhookSecret,
		DisableWelcomeComments: disableWelcomeComments, counter: counter, Log: log,
	}
}

// Router mounts the webhook endpoint on a fresh chi.Router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/webhook", s.handleWebhook)
	return r
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		http.Error(w, "missing X-GitHub-Event header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("X-Hub-Signature-256")
	if sigHeader == "" && s.WebhookSecret != "" {
		http.Error(w, "missing signature", http.StatusUnauthorized)
		return
	}
	ok, err := crypto.VerifySignature(s.WebhookSecret, sigHeader, body)
	if err != nil || !ok {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	s.counter.Inc(eventType)

	if !knownEvents[eventType] {
		s.Log.WithField("event-type", eventType).Info("ignoring unrecognized webhook event type")
		w.WriteHeader(http.StatusOK)
		return
	}

	task, err := s.buildTask(eventType, body)
	if err != nil {
		s.Log.WithError(err).WithField("event-type", eventType).
			WithField("body-excerpt", excerpt(body)).Error("failed to parse webhook event")
		http.Error(w, "failed to parse event", http.StatusBadRequest)
		return
	}

	if task != nil {
		s.Queue.Enqueue(task)
	}
	w.WriteHeader(http.StatusAccepted)
}

func excerpt(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}

// buildTask parses body per eventType and returns the background task to
// enqueue, per spec.md §4.3's event→action table. A nil task with a nil
// error means "nothing further to do" (e.g. a ping).
func (s *Server) buildTask(eventType string, body []byte) (workqueue.Task, error) {
	switch eventType {
	case "ping":
		s.Log.Info("received ping webhook")
		return nil, nil

	case "pull_request":
		var ev pullRequestEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, err
		}
		handle := domain.Handle{Owner: ev.Repository.Owner.Login, Name: ev.Repository.Name, Number: ev.PullRequest.Number}
		if ev.Action == "opened" {
			return func(ctx context.Context) { s.onPullRequestOpened(ctx, handle) }, nil
		}
		return func(ctx context.Context) { s.reconcile(ctx, handle) }, nil

	case "pull_request_review":
		var ev pullRequestReviewEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, err
		}
		handle := domain.Handle{Owner: ev.Repository.Owner.Login, Name: ev.Repository.Name, Number: ev.PullRequest.Number}
		return func(ctx context.Context) { s.reconcileIfKnown(ctx, handle) }, nil

	case "check_suite":
		var ev checkSuiteEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, err
		}
		if ev.Action != "completed" {
			return nil, nil
		}
		// check_suite carries no PR number directly, so every PR of this
		// repository known to storage whose upstream head SHA matches is
		// reconciled instead.
		repo := ev.Repository
		sha := ev.CheckSuite.HeadSHA
		return func(ctx context.Context) { s.reconcileBySHA(ctx, repo.Owner.Login, repo.Name, sha) }, nil

	case "issue_comment":
		var ev issueCommentEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, err
		}
		if ev.Action != "created" || ev.Issue.PullRequest == nil {
			return nil, nil
		}
		handle := domain.Handle{Owner: ev.Repository.Owner.Login, Name: ev.Repository.Name, Number: ev.Issue.Number}
		comment := ev.Comment
		return func(ctx context.Context) {
			if err := s.Dispatcher.HandleComment(ctx, handle, s.BotUsername, comment.ID, comment.User.Login, comment.Body); err != nil {
				s.Log.WithError(err).WithField("pr", handle.String()).Error("dispatcher failed")
			}
		}, nil
	}
	return nil, nil
}

func (s *Server) onPullRequestOpened(ctx context.Context, handle domain.Handle) {
	isNewPR := true
	if repo, err := s.Storage.GetRepository(ctx, handle.Owner, handle.Name); err == nil {
		_, prErr := s.Storage.GetPullRequest(ctx, repo.ID, handle.Number)
		isNewPR = storage.IsNotFound(prErr)
	}

	if err := s.Engine.Synchronize(ctx, handle); err != nil {
		s.Log.WithError(err).WithField("pr", handle.String()).Error("synchronize failed")
		return
	}

	if isNewPR && !s.DisableWelcomeComments {
		if _, err := s.API.CreateComment(ctx, handle.Owner, handle.Name, handle.Number, welcomeComment); err != nil {
			s.Log.WithError(err).WithField("pr", handle.String()).Warn("failed to post welcome comment")
		}
	}
}

func (s *Server) reconcile(ctx context.Context, handle domain.Handle) {
	if err := s.Engine.UpdateStatus(ctx, handle); err != nil {
		s.Log.WithError(err).WithField("pr", handle.String()).Error("reconcile failed")
	}
}

// reconcileIfKnown implements the "reconcile iff PR row exists" rule for
// pull_request_review: UpdateStatus already no-ops on an unknown PR, so
// this is just reconcile with a clearer name at the call site.
func (s *Server) reconcileIfKnown(ctx context.Context, handle domain.Handle) {
	s.reconcile(ctx, handle)
}

// reconcileBySHA resolves every open PR whose head SHA matches sha and
// reconciles each, since check_suite deliveries do not carry a PR number.
func (s *Server) reconcileBySHA(ctx context.Context, owner, name, sha string) {
	repo, err := s.Storage.GetRepository(ctx, owner, name)
	if err != nil {
		return
	}
	prs, err := s.Storage.ListOpenPullRequests(ctx, repo.ID)
	if err != nil {
		s.Log.WithError(err).Error("list open pull requests for check_suite reconcile")
		return
	}
	for _, pr := range prs {
		upstream, err := s.API.GetPullRequest(ctx, owner, name, pr.Number)
		if err != nil || upstream.HeadSHA != sha {
			continue
		}
		s.reconcile(ctx, domain.Handle{Owner: owner, Name: name, Number: pr.Number})
	}
}
