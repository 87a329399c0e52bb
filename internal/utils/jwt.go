package utils // package utils provides helper functions for token creation

import (
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/google/uuid"
)

// AccessToken represents a signed JWT along with its expiry.  It is the
// user_token handed out at user creation and sent back as a Bearer token
// on every room call.
type AccessToken struct {
    Token string    // the serialized JWT string
    ID    string    // jti claim, logged to correlate requests with a token
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The claims are
// sub (user id), jti, exp and iat.
func NewAccessToken(secret string, userID uint64, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    jti := uuid.NewString()
    claims := jwt.RegisteredClaims{
        Subject:   fmt.Sprintf("%d", userID),
        ID:        jti,
        ExpiresAt: jwt.NewNumericDate(exp),
        IssuedAt:  jwt.NewNumericDate(now),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, ID: jti, Exp: exp}, nil
}

// ErrInvalidToken is returned by ParseAccessToken for any token that does
// not verify.
var ErrInvalidToken = errors.New("invalid token")

// ParseAccessToken verifies raw with secret and returns its claims.  Only
// HMAC signing methods are accepted.
func ParseAccessToken(secret, raw string) (*jwt.RegisteredClaims, error) {
    claims := &jwt.RegisteredClaims{}
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return nil, ErrInvalidToken
    }
    if claims.Subject == "" {
        return nil, ErrInvalidToken
    }
    return claims, nil
}
