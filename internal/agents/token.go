package agents

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wagerhouse/internal/fault"
)

var ErrInvalidToken = fault.Wrap(fault.ErrAuthorization, "invalid_token")

// TokenService mints and validates the signed access tokens handed out at
// registration. API keys remain valid in parallel; tokens just avoid
// sending the long-lived key on every request.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

type tokenClaims struct {
	AgentID string `json:"agent_id"`
	jwt.RegisteredClaims
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

func (s *TokenService) Issue(agentID string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		AgentID: agentID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate returns the agent ID bound into a token.
func (s *TokenService) Validate(token string) (string, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.AgentID == "" {
		return "", ErrInvalidToken
	}
	return claims.AgentID, nil
}
