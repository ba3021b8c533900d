package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/notification"
	"github.com/kazihub/kazi/core/user"
)

type notificationApi struct {
	svc     notification.Service
	userSvc user.Service
	broker  core.Broker
}

func registerNotificationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc notification.Service,
	userSvc user.Service,
	broker core.Broker,
) {
	api := notificationApi{
		svc:     svc,
		userSvc: userSvc,
		broker:  broker,
	}

	ng := g.Group("/notifications", jwt)
	ng.POST("", api.send)
	ng.GET("", api.query, adminMiddleware())
	ng.GET("/pending", api.queryPending)
	ng.GET("/stream", api.stream)
	ng.POST("/:id/ack", api.acknowledge)
}

// Handlers

func (api *notificationApi) send(ctx echo.Context) error {
	var data notification.NewUrgent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUrgent")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sender, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// only admins may interrupt the whole team
	if data.Broadcast && !sender.IsAdmin() {
		return errHttpForbidden
	}

	notifs, err := api.svc.Send(ctx.Request().Context(), sender, data)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "recipient_id", Error: "unknown recipient"})
		}
		return errors.Wrap(err, "sending notification")
	}
	return ctx.JSON(http.StatusCreated, notifs)
}

func (api *notificationApi) query(ctx echo.Context) error {
	filter := new(notification.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []notification.Urgent{})
	}

	notifs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Urgent{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) queryPending(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	notifs, err := api.svc.QueryPending(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying pending notifications")
	}
	if notifs == nil {
		notifs = []notification.Urgent{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) acknowledge(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	notif, err := api.svc.Acknowledge(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		switch errors.Cause(err) {
		case notification.ErrNotFound:
			return errHttpNotFound
		case notification.ErrNotRecipient:
			return errHttpForbidden
		}
		return errors.Wrap(err, "acknowledging notification")
	}
	return ctx.JSON(http.StatusOK, notif)
}

// stream pushes the user's own notifications plus broadcasts over SSE.
func (api *notificationApi) stream(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	userSub, err := api.broker.Subscribe(notification.UserSubject(claims.Subject))
	if err != nil {
		return errors.Wrap(err, "subscribing to user notifications")
	}
	bcastSub, err := api.broker.Subscribe(notification.SubjectBroadcast)
	if err != nil {
		_ = userSub.Close()
		return errors.Wrap(err, "subscribing to broadcasts")
	}
	return streamEvents(ctx, userSub, bcastSub)
}
