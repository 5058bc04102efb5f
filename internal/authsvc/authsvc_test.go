package authsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbot-go/scbot/internal/crypto"
	"github.com/scbot-go/scbot/internal/domain"
	"github.com/scbot-go/scbot/internal/storage/memory"
)

func TestAddAdminThenListIncludesIt(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), nil)

	require.NoError(t, s.AddAdmin(ctx, "root"))

	admins, err := s.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "root", admins[0].Username)
}

func TestRemoveAdminDeletesAccount(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), nil)
	require.NoError(t, s.AddAdmin(ctx, "root"))

	require.NoError(t, s.RemoveAdmin(ctx, "root"))

	admins, err := s.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Empty(t, admins)
}

func TestAddExternalAccountIssuesVerifiableKeypair(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), nil)

	account, err := s.AddExternalAccount(ctx, "ext")
	require.NoError(t, err)
	assert.NotEmpty(t, account.PrivateKey)
	assert.NotEmpty(t, account.PublicKey)

	priv, err := crypto.ParsePrivateKey(account.PrivateKey)
	require.NoError(t, err)
	pub, err := crypto.ParsePublicKey(account.PublicKey)
	require.NoError(t, err)

	now := time.Now()
	token, err := crypto.Sign(priv, crypto.Claims{IssuedAt: now.Unix(), Issuer: "ext"})
	require.NoError(t, err)
	claims, err := crypto.Verify(token, pub, now, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ext", claims.Issuer)
}

func TestRemoveExternalAccountAlsoRevokesRights(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	s := New(store, nil)
	repo := domain.Repository{Owner: "o", Name: "r"}
	require.NoError(t, store.CreateRepository(ctx, &repo))

	_, err := s.AddExternalAccount(ctx, "ext")
	require.NoError(t, err)
	require.NoError(t, s.GrantRight(ctx, "ext", "o", "r"))

	require.NoError(t, s.RemoveExternalAccount(ctx, "ext"))

	has, err := store.HasRight(ctx, "ext", repo.ID)
	require.NoError(t, err)
	assert.False(t, has)
	_, err = store.GetExternalAccount(ctx, "ext")
	assert.Error(t, err)
}

func TestGrantAndRevokeRight(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	s := New(store, nil)
	repo := domain.Repository{Owner: "o", Name: "r"}
	require.NoError(t, store.CreateRepository(ctx, &repo))
	_, err := s.AddExternalAccount(ctx, "ext")
	require.NoError(t, err)

	require.NoError(t, s.GrantRight(ctx, "ext", "o", "r"))
	has, err := store.HasRight(ctx, "ext", repo.ID)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.RevokeRight(ctx, "ext", "o", "r"))
	has, err = store.HasRight(ctx, "ext", repo.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGenerateTokenProducesTokenVerifiableByStoredPublicKey(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	s := New(store, nil)
	account, err := s.AddExternalAccount(ctx, "ext")
	require.NoError(t, err)

	now := time.Now()
	token, err := s.GenerateToken(ctx, "ext", now)
	require.NoError(t, err)

	pub, err := crypto.ParsePublicKey(account.PublicKey)
	require.NoError(t, err)
	claims, err := crypto.Verify(token, pub, now, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ext", claims.Issuer)
}
