package ghclient

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v57/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// AppTokenSource mints GitHub App installation access tokens,
// grounded on ghinstallation's token-source shape without adding the
// dependency: this project already carries golang-jwt for RS256 and
// go-github for the exchange call, so the App-auth JWT (signed with
// the App's own private key, distinct from internal/crypto's
// ExternalAccount keys) and the installation-token exchange are built
// from those two instead.
type AppTokenSource struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	httpClient     *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewAppTokenSource parses a PEM-encoded RSA private key (PKCS1 or
// PKCS8, GitHub Apps pages offer either) and builds a token source for
// the given App/installation pair.
func NewAppTokenSource(appID, installationID int64, privateKeyPEM []byte) (*AppTokenSource, error) {
	key, err := parseAppPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return &AppTokenSource{appID: appID, installationID: installationID, privateKey: key, httpClient: http.DefaultClient}, nil
}

func parseAppPrivateKey(privateKeyPEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("decode app private key: not PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse app private key")
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("app private key is not RSA")
	}
	return key, nil
}

// Token returns a valid installation access token, refreshing it a
// minute ahead of GitHub's ~1h expiry.
func (s *AppTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Now().Before(s.expires.Add(-time.Minute)) {
		return &oauth2.Token{AccessToken: s.token, Expiry: s.expires}, nil
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    strconv.FormatInt(s.appID, 10),
	}
	appJWT, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "sign app jwt")
	}

	gh := github.NewClient(s.httpClient).WithAuthToken(appJWT)
	install, _, err := gh.Apps.CreateInstallationToken(context.Background(), s.installationID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create installation token")
	}
	s.token = install.GetToken()
	s.expires = install.GetExpiresAt().Time
	return &oauth2.Token{AccessToken: s.token, Expiry: s.expires}, nil
}

var _ oauth2.TokenSource = (*AppTokenSource)(nil)

// NewAppAuthenticatedHTTPClient builds the *http.Client go-github needs
// from a GitHub App token source, refreshed transparently on every
// request near expiry.
func NewAppAuthenticatedHTTPClient(ctx context.Context, source *AppTokenSource) *http.Client {
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, source))
}
