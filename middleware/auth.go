package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loomrelay/gateway/common/ctxkey"
	"github.com/loomrelay/gateway/internal/configstore"
	"github.com/loomrelay/gateway/model"
)

// Auth resolves the bearer ApiToken against store's current snapshot,
// rejecting with 401 (AuthRequired) if missing/unknown/disabled and 402
// (QuotaExceeded) if the token's quota invariant is already violated, per
// spec §7's error table and §4.8 step 1 ("resolve principal via bearer
// token"). On success it stamps ctxkey.Principal/ctxkey.Token for
// relay/proxy's rate-limit key and LogRecord.UserID.
func Auth(store *configstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			writeAuthError(c, http.StatusUnauthorized, "auth_required", "missing or malformed Authorization header")
			return
		}

		snap := store.Current()
		if snap == nil {
			writeAuthError(c, http.StatusServiceUnavailable, "internal_error", "configuration store unavailable")
			return
		}

		at, ok := snap.Tokens[token]
		if !ok || at.Status != model.TokenStatusEnabled {
			writeAuthError(c, http.StatusUnauthorized, "auth_required", "invalid or disabled token")
			return
		}
		if at.QuotaExceeded() {
			writeAuthError(c, http.StatusPaymentRequired, "quota_exceeded", "token quota exceeded")
			return
		}

		c.Set(ctxkey.Principal, at.UserID)
		c.Set(ctxkey.Token, at)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeAuthError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
	c.Abort()
}
