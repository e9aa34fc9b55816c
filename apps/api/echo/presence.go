package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kasuku/mwelekeo/core/presence"
)

type presenceApi struct {
	reg *presence.Registry
}

func registerPresenceAPI(g *echo.Group, jwt echo.MiddlewareFunc, reg *presence.Registry) {
	api := presenceApi{reg: reg}

	pg := g.Group("/presence", jwt)
	pg.POST("/heartbeat", api.heartbeat)
	pg.DELETE("/heartbeat", api.disconnect)
	pg.GET("/online", api.online, staffMiddleware())
}

// Handlers

func (api *presenceApi) heartbeat(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	api.reg.Heartbeat(claims.Subject)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *presenceApi) disconnect(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	api.reg.Disconnect(claims.Subject)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *presenceApi) online(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, OnlineResponse{
		Count: api.reg.Count(),
		Users: api.reg.Online(),
	})
}

type OnlineResponse struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}
