package crypto

import (
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Claims is the {iat, iss} claim set spec.md §4.5 names.
type Claims struct {
	IssuedAt int64
	Issuer   string
}

type jwtClaims struct {
	jwt.RegisteredClaims
}

// Sign mints an RS256 JWT over claims using priv.
func Sign(priv *rsa.PrivateKey, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Unix(claims.IssuedAt, 0)),
			Issuer:   claims.Issuer,
		},
	})
	signed, err := token.SignedString(priv)
	if err != nil {
		return "", errors.Wrap(err, "sign jwt")
	}
	return signed, nil
}

// ErrTokenExpired is returned when iat falls outside the validity window.
var ErrTokenExpired = errors.New("token outside validity window")

// ErrBadToken is returned for any structurally invalid or
// signature-invalid token.
var ErrBadToken = errors.New("invalid token")

// Verify checks the RS256 signature against pub and that iat is within
// ±validity of now, per spec.md §4.4. It returns the parsed claims.
func Verify(tokenString string, pub *rsa.PublicKey, now time.Time, validity time.Duration) (Claims, error) {
	var claims jwtClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrBadToken
		}
		return pub, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !token.Valid {
		return Claims{}, ErrBadToken
	}
	if claims.IssuedAt == nil {
		return Claims{}, ErrBadToken
	}
	iat := claims.IssuedAt.Time
	delta := now.Sub(iat)
	if delta < 0 {
		delta = -delta
	}
	if delta > validity {
		return Claims{}, ErrTokenExpired
	}
	return Claims{IssuedAt: iat.Unix(), Issuer: claims.Issuer}, nil
}
