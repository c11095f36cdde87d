package services_test

import (
	"testing"
	"time"

	"pharmahub/internal/models"
	"pharmahub/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	tokens := services.NewTokenService("test_jwt_secret")

	token, err := tokens.IssueToken(vendorA)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	identity, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, vendorA, identity)
}

func TestTokenService_ValidateToken(t *testing.T) {
	tokens := services.NewTokenService("test_jwt_secret")

	sign := func(claims jwt.MapClaims, secret string) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"user_id": "pharmacy-a",
			"role":    "pharmacy",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}
	}

	expired := valid()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	badRole := valid()
	badRole["role"] = "superuser"
	noSubject := valid()
	delete(noSubject, "user_id")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(valid(), "other_secret")},
		{"expired", sign(expired, "test_jwt_secret")},
		{"unknown role", sign(badRole, "test_jwt_secret")},
		{"missing subject", sign(noSubject, "test_jwt_secret")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := tokens.ValidateToken(tt.token)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "invalid token")
			assert.Equal(t, models.Identity{}, identity)
		})
	}

	identity, err := tokens.ValidateToken(sign(valid(), "test_jwt_secret"))
	require.NoError(t, err)
	assert.Equal(t, models.Identity{SubjectID: "pharmacy-a", Role: models.RolePharmacy}, identity)
}
