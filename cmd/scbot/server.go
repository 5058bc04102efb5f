package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scbot-go/scbot/internal/config"
	"github.com/scbot-go/scbot/internal/dispatcher"
	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/engine"
	"github.com/scbot-go/scbot/internal/ghapi"
	"github.com/scbot-go/scbot/internal/httpapi"
	"github.com/scbot-go/scbot/internal/lock"
	"github.com/scbot-go/scbot/internal/metrics"
	"github.com/scbot-go/scbot/internal/storage"
	"github.com/scbot-go/scbot/internal/tenor"
	"github.com/scbot-go/scbot/internal/webhook"
	"github.com/scbot-go/scbot/internal/workqueue"
)

// syncSweepSchedule reconciles every open PR once an hour, a safety
// net for webhook deliveries GitHub never retried, grounded on the
// original project's periodic resync job (github-scbot-server) and
// built here with robfig/cron/v3 per the DOMAIN STACK's "Scheduled
// sync sweep" slot.
const syncSweepSchedule = "0 * * * *"

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the webhook/external-RPC HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	m := metrics.New()

	store, err := newStorage(cfg)
	if err != nil {
		return err
	}

	locks, err := newLockService(cfg, m, log)
	if err != nil {
		return err
	}

	api, err := newGitHubClient(ctx, cfg, m, log)
	if err != nil {
		return err
	}

	return runServerWithDeps(ctx, cfg, store, locks, api, m, log)
}

// runServerWithDeps runs the HTTP server against an already-built
// storage/lock/GitHub-client trio, letting `scbot debug` substitute
// in-memory storage and a fake GitHub client without duplicating the
// routing and shutdown wiring below.
func runServerWithDeps(ctx context.Context, cfg *config.Config, store storage.Interface, locks lock.Service, api ghapi.Client, m *metrics.Metrics, log *logrus.Entry) error {
	eng := engine.New(store, api, locks, cfg.LockTimeout(), log.WithField("component", "engine"), cfg.RepositoryDefaults())
	gif := tenor.New(cfg.TenorAPIKey, nil, m.TenorAPICalls())
	disp := dispatcher.New(store, api, eng, locks, cfg.LockTimeout(), gif, log.WithField("component", "dispatcher"))

	queue := workqueue.New(ctx, 8, 256, log.WithField("component", "workqueue"))
	defer queue.Close()

	webhookServer := webhook.New(eng, disp, store, api, queue, cfg.BotUsername, cfg.GitHubWebhookSecret, cfg.DisableWelcomeComments, m.WebhookEvents(), log.WithField("component", "webhook"))
	externalServer := httpapi.New(store, eng, cfg.JWTValidity(), log.WithField("component", "httpapi"))

	sweep := cron.New()
	if _, err := sweep.AddFunc(syncSweepSchedule, func() { runSyncSweep(ctx, store, eng, log) }); err != nil {
		return errors.Wrap(err, "schedule sync sweep")
	}
	sweep.Start()
	defer sweep.Stop()

	root := chi.NewRouter()
	root.Use(cors.Handler(cors.Options{AllowedMethods: []string{http.MethodGet, http.MethodPost}}))
	root.Post("/webhook", webhookServer.Router().ServeHTTP)
	root.Post("/external/{owner}/{name}/set-qa-status", externalServer.Router().ServeHTTP)
	root.Handle("/metrics", m.Handler())
	root.Get("/health", newHealthHandler(store, locks))

	httpServer := &http.Server{
		Addr:    cfg.BindIP + ":" + strconv.Itoa(cfg.BindPort),
		Handler: root,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", httpServer.Addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runSyncSweep reconciles every open PR across every known repository,
// logging and continuing past individual failures so one broken PR
// never blocks the rest of the sweep.
func runSyncSweep(ctx context.Context, store storage.Interface, eng *engine.Engine, log *logrus.Entry) {
	repos, err := store.ListRepositories(ctx)
	if err != nil {
		log.WithError(err).Warn("sync sweep: list repositories")
		return
	}
	for _, repo := range repos {
		prs, err := store.ListOpenPullRequests(ctx, repo.ID)
		if err != nil {
			log.WithError(err).WithField("repo", repo.Path()).Warn("sync sweep: list open pull requests")
			continue
		}
		for _, pr := range prs {
			handle := domain.Handle{Owner: repo.Owner, Name: repo.Name, Number: pr.Number}
			if err := eng.Synchronize(ctx, handle); err != nil {
				log.WithError(err).WithField("pr", handle.String()).Warn("sync sweep: synchronize")
			}
		}
	}
}

func newHealthHandler(store storage.Interface, locks interface {
	Get(ctx context.Context, key string) (string, bool, error)
}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, err := store.ListRepositories(ctx); err != nil {
			http.Error(w, "storage unreachable", http.StatusServiceUnavailable)
			return
		}
		if _, _, err := locks.Get(ctx, "health-check"); err != nil {
			http.Error(w, "lock store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
