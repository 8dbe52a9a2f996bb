package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// OrgIDHeader carries the organization every request is scoped to.
	OrgIDHeader = "X-Org-ID"
	// OrgIDKey is the context key for the organization id.
	OrgIDKey = "org_id"
)

// RequireOrg rejects requests without an X-Org-ID header and stores the
// organization id in the context.
func RequireOrg() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := strings.TrimSpace(c.GetHeader(OrgIDHeader))
		if orgID == "" {
			traceID, _ := c.Get(RequestIDKey)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":    "missing " + OrgIDHeader + " header",
				"trace_id": traceID,
			})
			return
		}
		c.Set(OrgIDKey, orgID)
		c.Next()
	}
}

// OrgID returns the organization id stored by RequireOrg.
func OrgID(c *gin.Context) string {
	return c.GetString(OrgIDKey)
}
