package ghclient

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKeyPEM(t *testing.T, pkcs8 bool) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	if pkcs8 {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)
		return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	}
	der := x509.MarshalPKCS1PrivateKey(key)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
}

func TestParseAppPrivateKeyAcceptsPKCS1(t *testing.T) {
	key, err := parseAppPrivateKey(generateTestKeyPEM(t, false))
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestParseAppPrivateKeyAcceptsPKCS8(t *testing.T) {
	key, err := parseAppPrivateKey(generateTestKeyPEM(t, true))
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestParseAppPrivateKeyRejectsGarbage(t *testing.T) {
	_, err := parseAppPrivateKey([]byte("not a pem"))
	assert.Error(t, err)
}

func TestNewAppTokenSourceRejectsBadKey(t *testing.T) {
	_, err := NewAppTokenSource(1, 2, []byte("garbage"))
	assert.Error(t, err)
}
