package services

import (
	"fmt"
	"time"

	"pharmahub/internal/models"

	"github.com/dgrijalva/jwt-go"
)

// TokenService validates the identity assertions issued by the credential
// service. IssueToken mints compatible tokens for operator tooling and tests.
type TokenService struct {
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
}

// NewTokenService creates a new TokenService.
func NewTokenService(jwtSecret string) *TokenService {
	return &TokenService{
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour,
	}
}

// IssueToken signs an HS256 token carrying the identity.
func (s *TokenService) IssueToken(identity models.Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": identity.SubjectID,
		"role":    string(identity.Role),
		"exp":     time.Now().Add(s.tokenDurat).Unix(),
		"iat":     time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the identity it asserts.
func (s *TokenService) ValidateToken(tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Identity{}, fmt.Errorf("invalid token")
	}

	subject, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	identity := models.Identity{SubjectID: subject, Role: models.Role(role)}
	if identity.SubjectID == "" || !identity.Role.Valid() {
		return models.Identity{}, fmt.Errorf("invalid token: missing subject or role")
	}
	return identity, nil
}
