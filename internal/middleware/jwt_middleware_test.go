package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pharmahub/internal/middleware"
	"pharmahub/internal/models"
	"pharmahub/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupApp(tokens *services.TokenService) *fiber.App {
	app := fiber.New()
	protected := app.Group("/", middleware.AuthRequired(tokens, zap.NewNop()))
	protected.Get("/whoami", func(c *fiber.Ctx) error {
		identity, ok := middleware.IdentityFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(identity)
	})
	protected.Get("/admin", middleware.RequireRoles(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	tokens := services.NewTokenService("test_jwt_secret")
	app := setupApp(tokens)
	token, err := tokens.IssueToken(models.Identity{SubjectID: "p1", Role: models.RolePharmacy})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	tokens := services.NewTokenService("test_jwt_secret")
	app := setupApp(tokens)

	for role, want := range map[models.Role]int{
		models.RoleAdmin:    http.StatusNoContent,
		models.RoleVendor:   http.StatusForbidden,
		models.RolePharmacy: http.StatusForbidden,
	} {
		token, err := tokens.IssueToken(models.Identity{SubjectID: "someone", Role: role})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, string(role))
	}
}
