package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	id := NewIdentity("s3cret")
	token, err := id.Generate("u1", "Alice")
	require.NoError(t, err)

	claims, err := id.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Alice", claims.Name)
}

func TestGenerateRequiresUserID(t *testing.T) {
	_, err := NewIdentity("s3cret").Generate("", "Alice")
	assert.Error(t, err)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	token, err := NewIdentity("other").Generate("u1", "Alice")
	require.NoError(t, err)

	_, err = NewIdentity("s3cret").Parse(token)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewIdentity("s3cret").Parse(unsigned)
	assert.Error(t, err)
}

func whoami(id *Identity) *fiber.App {
	app := fiber.New()
	app.Use(id.Identify())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetUserID(c) + "|" + GetUserName(c))
	})
	return app
}

func body(t *testing.T, app *fiber.App, target, authHeader string) string {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestIdentifyFromQueryAndHeader(t *testing.T) {
	id := NewIdentity("s3cret")
	token, err := id.Generate("u1", "Alice")
	require.NoError(t, err)
	app := whoami(id)

	assert.Equal(t, "u1|Alice", body(t, app, "/?token="+token, ""))
	assert.Equal(t, "u1|Alice", body(t, app, "/", "Bearer "+token))
}

func TestIdentifyIgnoresMissingOrBadTokens(t *testing.T) {
	app := whoami(NewIdentity("s3cret"))

	assert.Equal(t, "|", body(t, app, "/", ""))
	assert.Equal(t, "|", body(t, app, "/?token=garbage", ""))
	assert.Equal(t, "|", body(t, app, "/", "Basic abc"))
}
