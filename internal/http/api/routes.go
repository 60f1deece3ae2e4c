// Package api wires the HTTP surface: route registration, authentication
// middleware and request identification.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/blogforge/blogforge/internal/archive"
	"github.com/blogforge/blogforge/internal/config"
	"github.com/blogforge/blogforge/internal/http/api/handlers"
	"github.com/blogforge/blogforge/internal/identity"
	"github.com/blogforge/blogforge/internal/ledger"
	"github.com/blogforge/blogforge/internal/orchestrator"
	"github.com/blogforge/blogforge/internal/payment"
	"github.com/blogforge/blogforge/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Dependencies bundles everything route registration needs.
type Dependencies struct {
	DB           *gorm.DB
	Resolver     *identity.Resolver
	Ledger       *ledger.Ledger
	Orchestrator *orchestrator.Orchestrator
	Archive      *archive.Archive
	Bridge       *payment.Bridge
	Limiter      *ratelimit.Manager
	JWT          config.JWTConfig
	Generate     config.GenerateConfig
}

// RegisterRoutes registers every route, middleware and handler.
func RegisterRoutes(r *gin.Engine, deps Dependencies) {
	if r == nil || deps.DB == nil {
		return
	}

	r.Use(requestIDMiddleware())

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v0 := r.Group("/v0")

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWT)
	v0.POST("/auth/register", authHandler.Register)
	v0.POST("/auth/login", authHandler.Login)
	v0.POST("/auth/logout", authHandler.Logout)

	// Generation authenticates inside the handler so API keys may arrive in
	// the request body as well as in headers.
	generateHandler := handlers.NewGenerateHandler(deps.DB, deps.Resolver, deps.Orchestrator, deps.Limiter, deps.Generate.RatePerSecond)
	v0.POST("/blog/generate", generateHandler.Generate)

	paymentHandler := handlers.NewPaymentHandler(deps.Bridge)
	v0.GET("/products", paymentHandler.Products)
	v0.POST("/payments/webhook", paymentHandler.Webhook)

	authed := v0.Group("")
	authed.Use(authMiddleware(deps.Resolver))

	accountHandler := handlers.NewAccountHandler(deps.Ledger)
	authed.GET("/me", accountHandler.Me)
	authed.GET("/credits", accountHandler.Credits)

	apiKeyHandler := handlers.NewAPIKeyHandler(deps.DB)
	authed.POST("/api-keys", apiKeyHandler.Create)
	authed.GET("/api-keys", apiKeyHandler.List)
	authed.DELETE("/api-keys/:id", apiKeyHandler.Revoke)

	generationHandler := handlers.NewGenerationHandler(deps.Archive)
	authed.GET("/generations", generationHandler.List)
	authed.GET("/generations/:id", generationHandler.Get)
	authed.GET("/titles", generationHandler.Titles)

	authed.POST("/checkout/sessions", paymentHandler.CreateCheckout)
}

// authMiddleware resolves the caller from a bearer session token or an
// X-API-Key header and stores the user on the context.
func authMiddleware(resolver *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, errResolve := resolver.Resolve(c.Request.Context(), bearerToken(c), c.GetHeader("X-API-Key"))
		if errResolve != nil {
			status := http.StatusUnauthorized
			if errors.Is(errResolve, identity.ErrInvalidCredential) {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "unauthorized"})
			return
		}
		handlers.SetUser(c, user)
		c.Next()
	}
}

// requestIDMiddleware tags each request with an id for log correlation,
// honoring an inbound X-Request-ID when present.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
