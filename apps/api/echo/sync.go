package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core/syncq"
)

type syncApi struct {
	svc syncq.Service
}

func registerSyncAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc syncq.Service) {
	api := syncApi{svc: svc}

	sg := g.Group("/sync", jwt)
	sg.POST("", api.replay)
}

// Handlers

// replay applies a client's queued offline operations in order and returns
// a per-operation outcome. Replaying the same batch again is harmless.
func (api *syncApi) replay(ctx echo.Context) error {
	var data syncq.Batch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Batch")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	results, err := api.svc.Replay(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "replaying batch")
	}
	return ctx.JSON(http.StatusOK, SyncResponse{Results: results})
}

type SyncResponse struct {
	Results []syncq.Result `json:"results"`
}
