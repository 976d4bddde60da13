package application

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// resetClaims binds a reset token to the password hash it was issued against,
// so a token stops working once the password changes.
type resetClaims struct {
	PasswordFingerprint string `json:"pwf"`
	jwt.RegisteredClaims
}

type resetTokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func (c resetTokenCodec) issue(userID, tokenID, passwordHash string) (string, time.Time, error) {
	if len(c.secret) == 0 {
		return "", time.Time{}, errors.New("reset token secret not configured")
	}
	issuedAt := c.now()
	expiresAt := issuedAt.Add(c.ttl)
	claims := resetClaims{
		PasswordFingerprint: passwordFingerprint(passwordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   userID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign reset token: %w", err)
	}
	return signed, expiresAt, nil
}

// parse verifies signature, issuer and expiry. Every failure is reported as
// ErrInvalidResetToken wrapping the underlying cause.
func (c resetTokenCodec) parse(token string) (*resetClaims, error) {
	claims := &resetClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}
	if !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidResetToken
	}
	return claims, nil
}

func passwordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:12])
}
