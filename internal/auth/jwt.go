package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"guest-visits-backend/internal/apperr"
)

var (
	ErrNonValidToken    = fmt.Errorf("%w: token did not pass validation", apperr.ErrUnauthorized)
	ErrInvalidClaimType = errors.New("invalid claim type")
)

var tokenSignatureAlg = jwt.SigningMethodHS256

// AccessClaim identifies the user in the subject claim.
type AccessClaim struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies access tokens with a shared secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a token codec.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Issue signs an access token for a user. Token issuance for end users
// lives in the account service; this is used by operator tooling and tests.
func (t *Tokens) Issue(userID, username string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = t.ttl
	}
	now := time.Now().UTC()
	claims := AccessClaim{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(tokenSignatureAlg, claims)
	return token.SignedString(t.secret)
}

// Verify checks the signature and expiry and returns the claims.
func (t *Tokens) Verify(tokenString string) (*AccessClaim, error) {
	parsedToken, err := jwt.ParseWithClaims(tokenString, &AccessClaim{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{tokenSignatureAlg.Alg()}), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonValidToken, err)
	} else if parsedToken == nil || !parsedToken.Valid {
		return nil, ErrNonValidToken
	}

	claims, ok := parsedToken.Claims.(*AccessClaim)
	if !ok {
		return nil, ErrInvalidClaimType
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrNonValidToken)
	}
	return claims, nil
}
