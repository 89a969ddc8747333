package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/meakaliaG/cocanvas-server/internal/auth"
	"github.com/meakaliaG/cocanvas-server/internal/config"
	"github.com/meakaliaG/cocanvas-server/internal/core"
	"github.com/meakaliaG/cocanvas-server/internal/store"
)

// NewServer builds the HTTP server: REST API, websocket endpoint, health check.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(logger))

	engine.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	roomHandlers := NewRoomHandlers(st, hub, logger)

	api := engine.Group("/api")
	{
		api.POST("/signup", apiHandlers.Signup)
		api.POST("/login", apiHandlers.Login)
		api.POST("/guest", apiHandlers.GuestLogin)
	}

	authed := api.Group("")
	authed.Use(AuthMiddleware(authService, logger))
	{
		authed.POST("/change-password", apiHandlers.ChangePassword)

		authed.POST("/rooms", roomHandlers.CreateRoom)
		authed.GET("/rooms", roomHandlers.ListPublicRooms)
		authed.GET("/rooms/mine", roomHandlers.ListMyRooms)
		authed.GET("/rooms/:code", roomHandlers.GetRoom)
		authed.PATCH("/rooms/:code", roomHandlers.UpdateRoom)
		authed.DELETE("/rooms/:code", roomHandlers.DeleteRoom)
		authed.POST("/rooms/:code/leave", roomHandlers.LeaveRoom)
		authed.GET("/rooms/:code/canvas", roomHandlers.GetCanvas)
		authed.PUT("/rooms/:code/canvas", roomHandlers.SaveCanvas)
	}

	// The websocket handler authenticates on its own: the browser websocket
	// API cannot set an Authorization header, so the token travels in the
	// query string.
	engine.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
