package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/plangrove/voicelink/internal/config"
	"github.com/plangrove/voicelink/internal/http/handler"
	"github.com/plangrove/voicelink/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	oauthHandler *handler.OAuthHandler,
	fulfillmentHandler *handler.FulfillmentHandler,
	linkHandler *handler.LinkHandler,
	rateLimiter *middleware.TokenRateLimiter,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	oauth := r.Group("/oauth")
	{
		oauth.GET("/authorize", oauthHandler.Authorize)
		if rateLimiter != nil {
			oauth.POST("/token", rateLimiter.Handler(), oauthHandler.Token)
		} else {
			oauth.POST("/token", oauthHandler.Token)
		}
	}

	r.POST("/fulfillment", fulfillmentHandler.Handle)

	links := r.Group("/links")
	{
		links.PUT("/:userId/groves", linkHandler.SetGroves)
		links.DELETE("/:userId", linkHandler.Unlink)
	}

	return r
}
