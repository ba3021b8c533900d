package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core"
)

var sseHeartbeatInterval = 30 * time.Second

// streamEvents streams broker messages to the client as Server-Sent Events
// until the client disconnects. A heartbeat comment keeps proxies from
// timing the connection out.
func streamEvents(ctx echo.Context, subs ...core.BrokerSubscription) error {
	defer func() {
		for _, sub := range subs {
			_ = sub.Close()
		}
	}()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	// fan all subscriptions into one channel
	events := make(chan core.BrokerMessage)
	done := ctx.Request().Context().Done()
	for _, sub := range subs {
		go func(sub core.BrokerSubscription) {
			for msg := range sub.C() {
				select {
				case events <- msg:
				case <-done:
					return
				}
			}
		}(sub)
	}

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return nil
		case msg := <-events:
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", msg.Subject, msg.Data); err != nil {
				return errors.Wrap(err, "writing event")
			}
			res.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": heartbeat\n\n"); err != nil {
				return errors.Wrap(err, "writing heartbeat")
			}
			res.Flush()
		}
	}
}
