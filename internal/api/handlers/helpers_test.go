package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"

	"github.com/dhima/followup-engine/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

func newOrgRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequireOrg())
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.OrgIDHeader, "org-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
