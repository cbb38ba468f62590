// Package httpapi wires the gin HTTP surface for the cargo stowage engine:
// placement, search/retrieval, waste return, day simulation, and the audit
// log, following the route-handler-per-operation style of the zmux-server
// router this module was adapted from.
package httpapi

import (
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stationcargo/cargostow/internal/config"
	"github.com/stationcargo/cargostow/internal/httpapi/middleware"
	"github.com/stationcargo/cargostow/internal/lifecycle"
	"github.com/stationcargo/cargostow/internal/placement"
	"github.com/stationcargo/cargostow/internal/retrieval"
	"github.com/stationcargo/cargostow/internal/scoring"
	"github.com/stationcargo/cargostow/internal/store"
	"github.com/stationcargo/cargostow/internal/waste"
)

// Server bundles the store and domain engines the HTTP handlers call into.
type Server struct {
	store     store.Store
	log       *zap.Logger
	placer    *placement.Planner
	retriever *retrieval.Planner
	lifecycle *lifecycle.Engine
	waster    *waste.Planner
	scores    *scoring.Cache
	sessions  *sessionService
	cfg       config.Config
}

// NewServer constructs a Server wired against s. The crew login session
// store dials Redis eagerly so a misconfigured address fails at startup
// rather than on a crew member's first login.
func NewServer(s store.Store, log *zap.Logger, cfg config.Config) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	sess, err := newSessionService(cfg.RedisAddr, cfg.SessionKey, cfg.Dev)
	if err != nil {
		return nil, err
	}
	retriever := retrieval.New(log, time.Now)
	return &Server{
		store:     s,
		log:       log.Named("httpapi"),
		placer:    placement.New(log),
		retriever: retriever,
		lifecycle: lifecycle.New(log),
		waster:    waste.New(log, retriever),
		scores:    scoring.NewCache(cfg.ScoringCache),
		sessions:  sess,
		cfg:       cfg,
	}, nil
}

// ZapLogger logs each request's method, route, status and latency, matching
// the access-log shape the rest of the stack emits.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Duration("latency", latency),
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// Router builds the configured gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(gin.Recovery())
	if !s.cfg.Dev {
		r.Use(secure.New(secure.Config{
			SSLRedirect:           false, // terminated upstream by the habitat's reverse proxy
			STSSeconds:            31536000,
			STSIncludeSubdomains:  true,
			FrameDeny:             true,
			ContentTypeNosniff:    true,
			ContentSecurityPolicy: "default-src 'self'",
		}))
	}
	if s.cfg.Dev {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(middleware.RequestID())
	r.Use(ZapLogger(s.log))
	r.Use(s.sessions.middleware())

	crew := map[string]string{s.cfg.CrewUsername: s.cfg.CrewPassword}
	auth := middleware.CrewAuth(crew, s.cfg.AutomationToken)

	r.GET("/api/ping", func(c *gin.Context) { c.JSON(200, gin.H{"message": "pong"}) })
	r.POST("/api/login", s.login(crew))
	r.POST("/api/logout", s.logout)

	api := r.Group("/api", auth)
	api.POST("/containers", s.createContainer)
	api.GET("/containers", s.listContainers)
	api.POST("/placement", s.planPlacement)
	api.POST("/place", s.place)
	api.GET("/search", s.search)
	api.POST("/retrieve", s.retrieve)
	api.GET("/waste", s.identifyWaste)
	api.POST("/waste/return-plan", s.planReturn)
	api.POST("/waste/complete-undocking", s.completeUndocking)
	api.POST("/simulate/day", s.simulateDay)
	api.GET("/logs", s.listLogs)
	api.POST("/import/items", s.importItems)
	api.POST("/import/containers", s.importContainers)
	api.GET("/export/arrangement", s.exportArrangement)

	return r
}
