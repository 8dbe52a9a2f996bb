package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dhima/followup-engine/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenIDs struct {
	gin     string
	request string
}

func requestIDRouter(seen *seenIDs) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.POST("/followups/:id/execute", func(c *gin.Context) {
		seen.gin = c.GetString(RequestIDKey)
		seen.request = logging.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequestID_WhenClientSendsWellFormedID_ThenPropagatedToEngineContext(t *testing.T) {
	// Arrange
	var seen seenIDs
	router := requestIDRouter(&seen)
	req := httptest.NewRequest(http.MethodPost, "/followups/fu-1/execute", nil)
	req.Header.Set(RequestIDHeader, "retry-job:2025.01.10_fu-1")
	w := httptest.NewRecorder()

	// Act
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, "retry-job:2025.01.10_fu-1", seen.request)
	assert.Equal(t, seen.request, seen.gin)
	assert.Equal(t, seen.request, w.Header().Get(RequestIDHeader))
}

func TestRequestID_WhenClientIDMalformed_ThenReplacedWithUUID(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"log injection", "abc\nlevel=error msg=forged"},
		{"spaces", "two words"},
		{"too long", strings.Repeat("a", maxRequestIDLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var seen seenIDs
			router := requestIDRouter(&seen)
			req := httptest.NewRequest(http.MethodPost, "/followups/fu-1/execute", nil)
			if tt.header != "" {
				req.Header[RequestIDHeader] = []string{tt.header}
			}
			w := httptest.NewRecorder()

			// Act
			router.ServeHTTP(w, req)

			// Assert
			_, err := uuid.Parse(seen.request)
			require.NoError(t, err)
			assert.NotEqual(t, tt.header, seen.request)
			assert.Equal(t, seen.request, w.Header().Get(RequestIDHeader))
		})
	}
}

func TestRequestID_WhenMaxLengthID_ThenKept(t *testing.T) {
	// Arrange
	var seen seenIDs
	router := requestIDRouter(&seen)
	id := strings.Repeat("f", maxRequestIDLength)
	req := httptest.NewRequest(http.MethodPost, "/followups/fu-1/execute", nil)
	req.Header.Set(RequestIDHeader, id)

	// Act
	router.ServeHTTP(httptest.NewRecorder(), req)

	// Assert
	assert.Equal(t, id, seen.request)
}

func TestRequireOrg_WhenRejected_ThenTraceIDMatchesRequestID(t *testing.T) {
	// Arrange
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), RequireOrg())
	router.GET("/followups/due", func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/followups/due", nil)
	req.Header.Set(RequestIDHeader, "support-ticket-881")
	w := httptest.NewRecorder()

	// Act
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"trace_id":"support-ticket-881"`)
}
