package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"broker-copilot/internal/agent"
	"broker-copilot/internal/catalogue"
	"broker-copilot/internal/intake"
	"broker-copilot/internal/quotes"
	"broker-copilot/internal/services/health"
	"broker-copilot/internal/session"
	"broker-copilot/internal/shared/config"
	"broker-copilot/internal/shared/metrics"
	"broker-copilot/internal/shared/server/middleware"
	"broker-copilot/internal/shared/server/respond"
)

// RouterDeps bundles handlers and dependencies for the HTTP router.
type RouterDeps struct {
	Config         config.Config
	Catalogue      *catalogue.Catalogue
	SessionHandler *session.Handler
	QuoteHandler   *quotes.Handler
	AgentHandler   *agent.Handler
	Health         *health.Service
	RateLimiter    *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = &health.Service{}
	}
	api.GET("/health", func(c *gin.Context) {
		st := healthSvc.Check(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})
	api.GET("/concerns", func(c *gin.Context) {
		respond.OK(c, gin.H{"concerns": intake.Concerns()})
	})
	if deps.Catalogue != nil {
		api.GET("/catalogue", func(c *gin.Context) {
			respond.OK(c, gin.H{"products": deps.Catalogue.Summaries()})
		})
	}

	if deps.SessionHandler != nil {
		deps.SessionHandler.RegisterRoutes(api, runLimit(deps))
	}
	if deps.QuoteHandler != nil {
		deps.QuoteHandler.RegisterRoutes(api)
	}
	if deps.AgentHandler != nil {
		deps.AgentHandler.RegisterRoutes(r)
	}

	return r
}

func runLimit(deps RouterDeps) gin.HandlerFunc {
	if deps.Config.RateLimitRPS <= 0 || deps.Config.RateLimitBurst <= 0 {
		return nil
	}
	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}
	return middleware.RateLimit(middleware.RateLimitConfig{
		Rule: middleware.RateLimitRule{
			Rate:  deps.Config.RateLimitRPS,
			Burst: deps.Config.RateLimitBurst,
		},
		Scope:   "session_run",
		Limiter: limiter,
	})
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
