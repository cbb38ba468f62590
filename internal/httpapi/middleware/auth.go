package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const ActorIDKey = "actor_id"

// sessionUserKey is the session field holding the authenticated crew
// member's username, set by the login handler.
const sessionUserKey = "uid"

// CrewAuth allows access with a valid browser session (set by the login
// handler), valid Basic credentials against the crew roster, or a bearer
// token matching automationToken for unattended callers (the day-step
// simulator, waste undocking cron). On success it records the authenticated
// actor id for handlers and log records to use.
func CrewAuth(crew map[string]string, automationToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, ok := sessions.Default(c).Get(sessionUserKey).(string); ok && uid != "" {
			c.Set(ActorIDKey, uid)
			c.Next()
			return
		}
		if user, pass, ok := c.Request.BasicAuth(); ok {
			if want, known := crew[user]; known && subtle.ConstantTimeCompare([]byte(pass), []byte(want)) == 1 {
				c.Set(ActorIDKey, user)
				c.Next()
				return
			}
		}
		if automationToken != "" {
			if h := c.GetHeader("Authorization"); h == "Bearer "+automationToken {
				c.Set(ActorIDKey, "automation")
				c.Next()
				return
			}
		}
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}

// ActorID retrieves the authenticated actor id, or "" if none is set.
func ActorID(c *gin.Context) string {
	if v, ok := c.Get(ActorIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
