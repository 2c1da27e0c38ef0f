package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/faninteract/backend/internal/auth"
	"github.com/faninteract/backend/internal/models"
)

func newRouter(svc *auth.JWTService, roles ...models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(zap.NewNop()), CORS("https://fan.example.com"))
	g := r.Group("/", JWT(svc))
	if len(roles) > 0 {
		g.Use(RequireRole(roles...))
	}
	g.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, HostID(c))
	})
	return r
}

func do(r http.Handler, method, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/me", nil)
	req.Header.Set("Origin", "https://fan.example.com")
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTSetsHost(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	tok, err := svc.Generate("h1", "h@example.com", models.RoleHost)
	require.NoError(t, err)

	w := do(newRouter(svc), http.MethodGet, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "h1", w.Body.String())
	assert.Equal(t, "https://fan.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestJWTRejects(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(svc)
	for _, h := range []string{"", "Token abc", "Bearer abc"} {
		assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, h).Code, h)
	}
}

func TestRequireRole(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	host, _ := svc.Generate("h1", "h@example.com", models.RoleHost)
	admin, _ := svc.Generate("a1", "a@example.com", models.RoleAdmin)
	r := newRouter(svc, models.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "Bearer "+host).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "Bearer "+admin).Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(auth.NewJWTService("secret", 1))
	w := do(r, http.MethodOptions, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestLoggerAssignsRequestID(t *testing.T) {
	r := newRouter(auth.NewJWTService("secret", 1))

	w := do(r, http.MethodGet, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	id := w.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, id)
	assert.Contains(t, w.Body.String(), `"request_id":"`+id+`"`)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderRequestID, "from-client")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "from-client", w.Header().Get(HeaderRequestID))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	r := newRouter(auth.NewJWTService("secret", 1))
	req := httptest.NewRequest(http.MethodOptions, "/me", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
