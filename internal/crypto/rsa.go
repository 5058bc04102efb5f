// Package crypto implements C5: RSA-2048 key issuance, RS256 JWT
// sign/verify over {iat, iss}, and constant-time HMAC-SHA-256 webhook
// signature verification.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/pkg/errors"
)

const rsaKeyBits = 2048

// KeyPair is an RSA-2048 keypair PEM-encoded with PKCS1, the format
// ExternalAccount.PublicKey/PrivateKey store.
type KeyPair struct {
	PublicKeyPEM  string
	PrivateKeyPEM string
}

// GenerateKeyPair issues a fresh RSA-2048 keypair. There is no library in
// the pack that generates raw RSA keypairs more safely than the standard
// library's crypto/rsa; SPEC_FULL.md names stdlib on purpose here (and
// for the HMAC webhook check).
func GenerateKeyPair() (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, errors.Wrap(err, "generate rsa key")
	}
	priv := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pub := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey),
	})
	return &KeyPair{PublicKeyPEM: string(pub), PrivateKeyPEM: string(priv)}, nil
}

func ParsePrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("invalid PEM block for private key")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse pkcs1 private key")
	}
	return key, nil
}

func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("invalid PEM block for public key")
	}
	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse pkcs1 public key")
	}
	return key, nil
}
