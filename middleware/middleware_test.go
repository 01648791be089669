package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(handler)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func TestGatewayAuthMiddleware(t *testing.T) {
	t.Setenv("ECO_SERVICE_TOKEN", "secret-token")
	app := newTestApp(GatewayAuthMiddleware())

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong token", "Bearer nope", fiber.StatusUnauthorized},
		{"bearer token", "Bearer secret-token", fiber.StatusOK},
		{"raw token", "secret-token", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ping", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("missing X-User-ID: status = %d, want %d", resp.StatusCode, fiber.StatusUnauthorized)
	}

	req = httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("X-User-ID", "user-123")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("with X-User-ID: status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}
}

func TestRequireAdmin(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware())
	admin := app.Group("/admin", RequireAdmin())
	admin.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	tests := []struct {
		name       string
		roles      string
		wantStatus int
	}{
		{"no roles", "", fiber.StatusForbidden},
		{"non-admin role", "member", fiber.StatusForbidden},
		{"admin role", "admin", fiber.StatusOK},
		{"admin among others", "member, admin", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin/ping", nil)
			req.Header.Set("X-User-ID", "user-123")
			if tt.roles != "" {
				req.Header.Set("X-User-Roles", tt.roles)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}
