package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(ContextRequestID, "req-1")

	Conflict(c, "already voted")

	assert.Equal(t, http.StatusConflict, w.Code)
	var b Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.False(t, b.Success)
	assert.Equal(t, "already voted", b.Error)
	assert.Equal(t, "req-1", b.RequestID)
}

func TestOKOmitsError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, gin.H{"screens": 2})

	assert.JSONEq(t, `{"success":true,"data":{"screens":2}}`, w.Body.String())
}
