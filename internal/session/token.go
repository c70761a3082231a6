package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "attester/pkg/domain"
)

// TokenService issues and validates the signed session tokens that propagate
// session identity on authenticated requests (out of band, via header).
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
}

func NewTokenService(signingKey string, ttl time.Duration) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), ttl: ttl}
}

// GenerateToken mints an HS256 token bound to the session id. The token
// expires with the session, so a stolen token is useless once the session is
// gone.
func (s *TokenService) GenerateToken(sessionID id.SessionID) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sessionID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    "attester",
		ID:        uuid.NewString(),
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken checks the signature and expiry and returns the bound session
// id. Implements the middleware SessionTokenValidator contract.
func (s *TokenService) ValidateToken(tokenString string) (id.SessionID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return id.SessionID{}, err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return id.SessionID{}, errors.New("invalid session token")
	}

	sessionID, err := id.ParseSessionID(claims.Subject)
	if err != nil {
		return id.SessionID{}, fmt.Errorf("invalid session subject: %w", err)
	}
	return sessionID, nil
}
