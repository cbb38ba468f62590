package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
)

// sessionKeyUserID is the session field the login handler and CrewAuth
// middleware share to recognize an authenticated crew member.
const sessionKeyUserID = "uid"

// sessionService manages crew browser sessions backed by Redis, so a crew
// member logs in once instead of resending Basic credentials on every call
// the habitat's console UI makes.
type sessionService struct {
	store   redis.Store
	options sessions.Options
}

// newSessionService dials the session store on the given Redis address,
// reusing the same instance the rest of the store layer talks to (a
// separate logical DB, so keys never collide with container/item state).
func newSessionService(redisAddr, sessionKey string, dev bool) (*sessionService, error) {
	store, err := redis.NewStoreWithDB(10, "tcp", redisAddr, "", "", "1", []byte(sessionKey))
	if err != nil {
		return nil, fmt.Errorf("new session store: %w", err)
	}
	opts := sessions.Options{
		Path:     "/api",
		MaxAge:   4 * 3600,
		Secure:   !dev,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	store.Options(opts)
	return &sessionService{store: store, options: opts}, nil
}

// middleware attaches gin-contrib/sessions' per-request session handling.
func (s *sessionService) middleware() gin.HandlerFunc {
	return sessions.Sessions("sid", s.store)
}

func (s *sessionService) login(session sessions.Session, uid string) error {
	session.Set(sessionKeyUserID, uid)
	return session.Save()
}

func (s *sessionService) logout(session sessions.Session) error {
	session.Clear()
	opts := s.options
	opts.MaxAge = -1
	session.Options(opts)
	return session.Save()
}
