package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core/presence"
	"github.com/kazihub/kazi/core/user"
)

type presenceApi struct {
	svc     presence.Service
	userSvc user.Service
}

func registerPresenceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc presence.Service, userSvc user.Service) {
	api := presenceApi{
		svc:     svc,
		userSvc: userSvc,
	}

	pg := g.Group("/presence", jwt)
	pg.POST("/beat", api.beat)
	pg.GET("/online", api.queryOnline)
	pg.GET("/:id", api.retrieve, dashboardMiddleware(func(c Claims) bool { return c.IsOperations }))
}

// Handlers

func (api *presenceApi) beat(ctx echo.Context) error {
	var data presence.Heartbeat
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Heartbeat")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	p, err := api.svc.Beat(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "recording heartbeat")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *presenceApi) queryOnline(ctx echo.Context) error {
	presences, err := api.svc.QueryOnline(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying online presences")
	}
	if presences == nil {
		presences = []presence.Presence{}
	}
	return ctx.JSON(http.StatusOK, presences)
}

func (api *presenceApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == presence.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding presence by user ID")
	}
	return ctx.JSON(http.StatusOK, p)
}
