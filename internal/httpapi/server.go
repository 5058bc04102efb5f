package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/scbot-go/scbot/internal/crypto"
	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/engine"
	"github.com/scbot-go/scbot/internal/storage"
)

type ctxKey string

const (
	ctxKeyRepo    ctxKey = "repo"
	ctxKeyAccount ctxKey = "account"
)

// Server is the external RPC surface.
type Server struct {
	Storage     storage.Interface
	Engine      *engine.Engine
	JWTValidity time.Duration
	Log         *logrus.Entry
}

func New(store storage.Interface, eng *engine.Engine, jwtValidity time.Duration, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{Storage: store, Engine: eng, JWTValidity: jwtValidity, Log: log}
}

// Router mounts the external RPC surface on a fresh chi.Router, scoped
// per spec.md §4.4 to a (owner, name) path parameter pair.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Route("/external/{owner}/{name}", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/set-qa-status", s.handleSetQAStatus)
	})
	return r
}

// authenticate implements spec.md §4.4's Bearer-JWT + per-repo-right
// check, grounded on the teacher's "reject before doing anything else"
// webhook validation posture.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		issuer, err := extractIssuer(tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		account, err := s.Storage.GetExternalAccount(r.Context(), issuer)
		if err != nil {
			http.Error(w, "unknown account", http.StatusUnauthorized)
			return
		}
		pub, err := crypto.ParsePublicKey(account.PublicKey)
		if err != nil {
			s.Log.WithError(err).WithField("account", issuer).Error("malformed stored public key")
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if _, err := crypto.Verify(tokenString, pub, time.Now(), s.JWTValidity); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		owner := chi.URLParam(r, "owner")
		name := chi.URLParam(r, "name")
		repo, err := s.Storage.GetRepository(r.Context(), owner, name)
		if err != nil {
			http.Error(w, "unknown repository", http.StatusNotFound)
			return
		}
		hasRight, err := s.Storage.HasRight(r.Context(), account.Username, repo.ID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !hasRight {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyRepo, repo)
		ctx = context.WithValue(ctx, ctxKeyAccount, account.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimPrefix(header, prefix)
	return token, token != ""
}

type unverifiedClaims struct {
	jwt.RegisteredClaims
}

// extractIssuer reads the `iss` claim without verifying the signature,
// since verification needs the ExternalAccount's public key, which is
// looked up by issuer in the first place.
func extractIssuer(tokenString string) (string, error) {
	var claims unverifiedClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return "", err
	}
	return claims.Issuer, nil
}

// handleSetQAStatus implements spec.md §4.4's set-qa-status: for each
// listed PR, set QaStatus and reconcile; partial success is allowed.
func (s *Server) handleSetQAStatus(w http.ResponseWriter, r *http.Request) {
	repo, _ := r.Context().Value(ctxKeyRepo).(*domain.Repository)

	var req setQAStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	status := domain.QaWaiting
	switch {
	case req.Status == nil:
		status = domain.QaWaiting
	case *req.Status:
		status = domain.QaPass
	default:
		status = domain.QaFail
	}

	results := make([]pullRequestOutcome, 0, len(req.PullRequestNumbers))
	for _, number := range req.PullRequestNumbers {
		results = append(results, s.applyQAStatus(r.Context(), *repo, number, status))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(setQAStatusResponse{Results: results})
}

func (s *Server) applyQAStatus(ctx context.Context, repo domain.Repository, number uint64, status domain.QaStatus) pullRequestOutcome {
	outcome := pullRequestOutcome{Number: number}

	pr, err := s.Storage.GetPullRequest(ctx, repo.ID, number)
	if err != nil {
		outcome.Error = "pull request not found"
		return outcome
	}

	pr.QaStatus = status
	if err := s.Storage.UpdatePullRequest(ctx, pr); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	handle := domain.Handle{Owner: repo.Owner, Name: repo.Name, Number: number}
	if err := s.Engine.UpdateStatus(ctx, handle); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.OK = true
	return outcome
}
