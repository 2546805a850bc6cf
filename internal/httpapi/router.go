// Package httpapi wires the HTTP surface: the room REST actions and the
// websocket signaling endpoint.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vkotx/gather/internal/config"
	"github.com/vkotx/gather/internal/domain"
	"github.com/vkotx/gather/internal/room"
	"github.com/vkotx/gather/internal/signal"
)

// ClientTokenMiddleware issues a per-browser token cookie used to correlate
// signal connections in logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, reg *room.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("GatherSessions", store))
	r.Use(ClientTokenMiddleware())

	api := r.Group("/api")

	rooms := api.Group("/v1/room")
	rooms.POST("/create", JWTAuth(cfg.Secret), func(c *gin.Context) {
		id := reg.CreateRoom()
		c.JSON(http.StatusOK, gin.H{"roomId": id})
	})
	rooms.GET("/:roomId", func(c *gin.Context) {
		id := domain.RoomID(c.Param("roomId"))
		c.JSON(http.StatusOK, gin.H{"exists": reg.RoomExists(id)})
	})

	ctl := signal.NewController(reg, cfg)
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "httpapi").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}
