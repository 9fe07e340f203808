package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/notif"
)

type streamApi struct {
	broker *notif.Broker
}

func registerStreamAPI(g *echo.Group, jwt echo.MiddlewareFunc, broker *notif.Broker) {
	api := streamApi{broker: broker}
	g.GET("/stream", api.stream, jwt)
}

// stream bridges the broker to an SSE response. Events arrive in commit order;
// a client that stops reading is disconnected rather than served a gap.
func (api *streamApi) stream(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := notif.Filter{
		StudentID: ctx.QueryParam("student_id"),
		CourseID:  ctx.QueryParam("course_id"),
	}
	if topics := ctx.QueryParam("topics"); topics != "" {
		for _, t := range strings.Split(topics, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Topics = append(filter.Topics, t)
			}
		}
	}
	// students only ever observe their own events
	if !claims.IsStaff() {
		filter.StudentID = claims.Subject
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	reqCtx := ctx.Request().Context()
	sub := api.broker.Subscribe(reqCtx, filter)
	defer api.broker.Unsubscribe(sub)

	for {
		select {
		case <-reqCtx.Done():
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				if err := sub.Err(); err != nil {
					ctx.Logger().Warnf("stream terminated: %v", err)
				}
				return nil
			}
			data, err := json.Marshal(event)
			if err != nil {
				return errors.Wrap(err, "marshaling event")
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event.Topic, data); err != nil {
				return nil // client went away
			}
			res.Flush()
		}
	}
}
