// Package webserver is the admin HTTP API.
package webserver

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/stake-plus/mod-review/src/config"
	"github.com/stake-plus/mod-review/src/logging"
	"github.com/stake-plus/mod-review/src/metrics"
	"github.com/stake-plus/mod-review/src/review"
	"github.com/stake-plus/mod-review/src/store"
	"github.com/stake-plus/mod-review/src/types"
)

// Reviewer runs accept/reject transitions.
type Reviewer interface {
	Accept(ctx context.Context, id types.ApplicationID, reviewer string) (*review.Outcome, error)
	Reject(ctx context.Context, id types.ApplicationID, reviewer, reason string) (*review.Outcome, error)
}

// RoleChecker answers guild role membership for the admin gate.
type RoleChecker interface {
	HasRole(ctx context.Context, userID, roleID string) (bool, error)
}

// Gateway reports the Discord connection for /healthz.
type Gateway interface {
	IsConnected() bool
}

// Deps are the collaborators behind the routes. Roles, Gateway and Redis are optional.
type Deps struct {
	Store   store.Repository
	Engine  Reviewer
	Roles   RoleChecker
	Gateway Gateway
	Redis   *redis.Client
	Logger  *zap.Logger

	// OAuthEndpoint and UserInfoURL default to Discord.
	OAuthEndpoint oauth2.Endpoint
	UserInfoURL   string
}

func New(cfg config.ReviewConfig, deps Deps) *gin.Engine {
	log := logging.OrNop(deps.Logger)
	g := gin.New()
	g.Use(gin.Recovery(), requestLogger(log), metrics.Middleware())
	attachRoutes(g, cfg, deps, log)
	return g
}

func attachRoutes(r *gin.Engine, cfg config.ReviewConfig, deps Deps, log *zap.Logger) {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", intakeHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	secret := []byte(cfg.JWTSecret)
	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	authH := NewAuth(cfg, deps, log)
	appH := NewApplications(deps.Store, deps.Engine, cfg.IntakeToken, log)

	r.GET("/healthz", Health(deps.Gateway, cfg.StoreBackend))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := r.Group("/auth")
	{
		auth.GET("/login", authH.Login)
		auth.GET("/callback", authH.Callback)
		auth.POST("/logout", authH.Logout)
	}

	v1 := r.Group("/v1")
	v1.POST("/applications", RateLimitMiddleware(limiter), appH.Intake)

	secured := v1.Group("")
	secured.Use(JWTMiddleware(secret), RateLimitMiddleware(limiter))
	secured.GET("/me", authH.Me)

	admin := secured.Group("")
	admin.Use(AdminMiddleware())
	{
		admin.GET("/applications", appH.List)
		admin.GET("/applications/:id", appH.Get)
		admin.GET("/stats", appH.Stats)
		admin.POST("/applications/:id/accept", appH.Accept)
		admin.POST("/applications/:id/reject", appH.Reject)
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		start := time.Now()

		c.Next()

		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics" {
			return
		}
		log.Info("http request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("reviewer", c.GetString(ctxReviewer)),
			zap.String("client_ip", c.ClientIP()))
	}
}
