package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/oscesim/internal/utils"
)

func normRole(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// RequireRole admits requests whose JWT role is one of allowed. It must run after JWTAuth.
func RequireRole(allowed ...string) gin.HandlerFunc {
	allow := map[string]bool{}
	for _, a := range allowed {
		if a = normRole(a); a != "" {
			allow[a] = true
		}
	}

	return func(c *gin.Context) {
		if !allow[normRole(c.GetString("role"))] {
			abort(c, http.StatusForbidden, utils.CodeForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

// RequireAdmin guards case authoring and voice cache management.
func RequireAdmin() gin.HandlerFunc { return RequireRole("admin") }
