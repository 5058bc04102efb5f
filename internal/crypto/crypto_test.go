package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	priv, err := ParsePrivateKey(kp.PrivateKeyPEM)
	require.NoError(t, err)
	pub, err := ParsePublicKey(kp.PublicKeyPEM)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	claims := Claims{IssuedAt: now.Unix(), Issuer: "ext-account"}

	token, err := Sign(priv, claims)
	require.NoError(t, err)

	got, err := Verify(token, pub, now, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
}

func TestJWTExpiredOutsideValidityWindow(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	priv, _ := ParsePrivateKey(kp.PrivateKeyPEM)
	pub, _ := ParsePublicKey(kp.PublicKeyPEM)

	issuedAt := time.Unix(1_700_000_000, 0)
	token, err := Sign(priv, Claims{IssuedAt: issuedAt.Unix(), Issuer: "ext"})
	require.NoError(t, err)

	later := issuedAt.Add(time.Hour)
	_, err = Verify(token, pub, later, 30*time.Second)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookSignatureAcceptsValidRejectsMutated(t *testing.T) {
	secret := "topsecret"
	body := []byte(`{"zen":"keep it logically awesome"}`)

	ok, err := VerifySignature(secret, sign(secret, body), body)
	require.NoError(t, err)
	assert.True(t, ok)

	mutated := append([]byte(nil), body...)
	mutated[0] ^= 0x01
	ok, err = VerifySignature(secret, sign(secret, body), mutated)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWebhookSignatureCaseInsensitiveHex(t *testing.T) {
	secret := "topsecret"
	body := []byte(`{"a":1}`)
	sig := sign(secret, body)

	upper := "sha256=" + toUpperHex(sig[len(signaturePrefix):])
	ok, err := VerifySignature(secret, upper, body)
	require.NoError(t, err)
	assert.True(t, ok)
}

func toUpperHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func TestWebhookSignatureEmptySecretDisablesVerification(t *testing.T) {
	ok, err := VerifySignature("", "", []byte("anything"))
	require.NoError(t, err)
	assert.True(t, ok)
}
