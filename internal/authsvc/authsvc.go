// Package authsvc implements C10: admin-account CRUD, external-account
// CRUD with RSA keypair issuance, and ExternalAccountRight grant/revoke
// — pure use-case functions over the storage port, exercised by both
// `cmd/scbot auth ...` and tests, grounded on the teacher's
// `plugins/trigger`-style "thin use-case wrapper over a store" shape.
package authsvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scbot-go/scbot/internal/crypto"
	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/storage"
)

// Service wraps the storage port with the admin/external-account/rights
// use-cases spec.md §6's CLI surface needs.
type Service struct {
	Storage storage.Interface
	Log     *logrus.Entry
}

func New(store storage.Interface, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{Storage: store, Log: log}
}

// AddAdmin grants username admin rights, creating the Account row if it
// doesn't exist yet.
func (s *Service) AddAdmin(ctx context.Context, username string) error {
	return s.Storage.UpsertAccount(ctx, domain.Account{Username: username, IsAdmin: true})
}

// RemoveAdmin deletes the Account row entirely; there is no other
// purpose for an Account row than tracking admin status.
func (s *Service) RemoveAdmin(ctx context.Context, username string) error {
	return s.Storage.DeleteAccount(ctx, username)
}

// ListAdmins returns every account with IsAdmin set.
func (s *Service) ListAdmins(ctx context.Context) ([]domain.Account, error) {
	return s.Storage.ListAccounts(ctx, true)
}

// AddExternalAccount issues a fresh RSA-2048 keypair for username and
// persists it; the private key never leaves this call's return value
// and storage — it is not logged.
func (s *Service) AddExternalAccount(ctx context.Context, username string) (*domain.ExternalAccount, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "generate keypair")
	}
	account := domain.ExternalAccount{Username: username, PublicKey: kp.PublicKeyPEM, PrivateKey: kp.PrivateKeyPEM}
	if err := s.Storage.CreateExternalAccount(ctx, account); err != nil {
		return nil, errors.Wrap(err, "create external account")
	}
	return &account, nil
}

// RemoveExternalAccount deletes username and every right it holds.
func (s *Service) RemoveExternalAccount(ctx context.Context, username string) error {
	if err := s.Storage.RevokeAllRights(ctx, username); err != nil {
		return errors.Wrap(err, "revoke rights")
	}
	return s.Storage.DeleteExternalAccount(ctx, username)
}

func (s *Service) ListExternalAccounts(ctx context.Context) ([]domain.ExternalAccount, error) {
	return s.Storage.ListExternalAccounts(ctx)
}

// GrantRight gives username the ExternalAccountRight to mutate owner/name's PRs.
func (s *Service) GrantRight(ctx context.Context, username, owner, name string) error {
	repo, err := s.Storage.GetRepository(ctx, owner, name)
	if err != nil {
		return errors.Wrap(err, "get repository")
	}
	return s.Storage.GrantRight(ctx, username, repo.ID)
}

// RevokeRight removes username's ExternalAccountRight on owner/name.
func (s *Service) RevokeRight(ctx context.Context, username, owner, name string) error {
	repo, err := s.Storage.GetRepository(ctx, owner, name)
	if err != nil {
		return errors.Wrap(err, "get repository")
	}
	return s.Storage.RevokeRight(ctx, username, repo.ID)
}

func (s *Service) RevokeAllRights(ctx context.Context, username string) error {
	return s.Storage.RevokeAllRights(ctx, username)
}

func (s *Service) ListRights(ctx context.Context, username string) ([]domain.ExternalAccountRight, error) {
	return s.Storage.ListRights(ctx, username)
}

// GenerateToken mints a fresh RS256 JWT for username, signed with its
// stored private key, for use against C9's Bearer auth.
func (s *Service) GenerateToken(ctx context.Context, username string, issuedAt time.Time) (string, error) {
	account, err := s.Storage.GetExternalAccount(ctx, username)
	if err != nil {
		return "", errors.Wrap(err, "get external account")
	}
	priv, err := crypto.ParsePrivateKey(account.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "parse private key")
	}
	token, err := crypto.Sign(priv, crypto.Claims{IssuedAt: issuedAt.Unix(), Issuer: username})
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return token, nil
}
