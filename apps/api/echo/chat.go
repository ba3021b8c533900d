package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/chat"
	"github.com/kazihub/kazi/core/user"
)

type chatApi struct {
	svc     chat.Service
	userSvc user.Service
	broker  core.Broker
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc chat.Service, userSvc user.Service, broker core.Broker) {
	api := chatApi{
		svc:     svc,
		userSvc: userSvc,
		broker:  broker,
	}

	cg := g.Group("/chat", jwt)
	cg.POST("/rooms", api.createRoom)
	cg.GET("/rooms", api.queryRooms)

	rg := cg.Group("/rooms/:id")
	rg.GET("", api.retrieveRoom)
	rg.POST("/messages", api.postMessage)
	rg.GET("/messages", api.history)
	rg.GET("/stream", api.stream)
}

// Handlers

func (api *chatApi) createRoom(ctx echo.Context) error {
	var data chat.NewRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoom")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// only admins may open team-wide rooms
	if data.IsTeam && !claims.IsAdmin {
		return errHttpForbidden
	}

	room, err := api.svc.CreateRoom(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating room")
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *chatApi) queryRooms(ctx echo.Context) error {
	rooms, err := api.svc.QueryRooms(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying rooms")
	}
	if rooms == nil {
		rooms = []chat.Room{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *chatApi) retrieveRoom(ctx echo.Context) error {
	room, err := api.svc.GetRoom(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == chat.ErrRoomNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding room by ID")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *chatApi) postMessage(ctx echo.Context) error {
	var data chat.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msg, err := api.svc.PostMessage(ctx.Request().Context(), ctx.Param("id"), usr.ID, usr.Name, data)
	if err != nil {
		if errors.Cause(err) == chat.ErrRoomNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *chatApi) history(ctx echo.Context) error {
	var filter chat.HistoryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to HistoryFilter")
	}

	msgs, err := api.svc.History(ctx.Request().Context(), ctx.Param("id"), filter)
	if err != nil {
		if errors.Cause(err) == chat.ErrRoomNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "querying history")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

// stream pushes a room's live messages to the client over SSE.
func (api *chatApi) stream(ctx echo.Context) error {
	roomID := ctx.Param("id")
	if _, err := api.svc.GetRoom(ctx.Request().Context(), roomID); err != nil {
		if errors.Cause(err) == chat.ErrRoomNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding room by ID")
	}

	sub, err := api.broker.Subscribe(chat.RoomSubject(roomID))
	if err != nil {
		return errors.Wrap(err, "subscribing to room")
	}
	return streamEvents(ctx, sub)
}
