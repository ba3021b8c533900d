package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core/automation"
)

type automationApi struct {
	svc automation.Service
}

func registerAutomationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc automation.Service) {
	api := automationApi{svc: svc}

	// rules control who gets paged, admins only
	ag := g.Group("/automation/rules", jwt, adminMiddleware())
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
}

// Handlers

func (api *automationApi) create(ctx echo.Context) error {
	var data automation.NewRule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRule")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	rule, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating rule")
	}
	return ctx.JSON(http.StatusCreated, rule)
}

func (api *automationApi) query(ctx echo.Context) error {
	onlyActive, _ := strconv.ParseBool(ctx.QueryParam("active"))

	rules, err := api.svc.Query(ctx.Request().Context(), onlyActive)
	if err != nil {
		return errors.Wrap(err, "querying rules")
	}
	if rules == nil {
		rules = []automation.Rule{}
	}
	return ctx.JSON(http.StatusOK, rules)
}

func (api *automationApi) retrieve(ctx echo.Context) error {
	rule, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == automation.ErrRuleNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding rule by ID")
	}
	return ctx.JSON(http.StatusOK, rule)
}

func (api *automationApi) update(ctx echo.Context) error {
	orig, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == automation.ErrRuleNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding rule by ID")
	}

	var data automation.UpdateRule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRule")
	}
	if err := data.Validate(orig); err != nil {
		return err
	}

	rule, err := api.svc.Update(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating rule")
	}
	return ctx.JSON(http.StatusOK, rule)
}

func (api *automationApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == automation.ErrRuleNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting rule")
	}
	return ctx.NoContent(http.StatusNoContent)
}
