package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.Any("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowedOriginPreflight(t *testing.T) {
	w := serve([]string{"https://app.example/"}, http.MethodOptions, "https://APP.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://APP.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSUnknownOriginPreflightRejected(t *testing.T) {
	w := serve([]string{"https://app.example"}, http.MethodOptions, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowAllWithoutOrigin(t *testing.T) {
	w := serve(nil, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
