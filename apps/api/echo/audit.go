package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/audit"
)

// exportPageSize bounds how many entries each storage round-trip pulls
// while streaming an export.
const exportPageSize = 500

type auditApi struct {
	svc audit.ServiceInterface
}

func registerAuditAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc audit.ServiceInterface) {
	api := auditApi{svc: svc}

	ag := g.Group("/audit", jwt, staffMiddleware())
	ag.GET("", api.list)
	ag.GET("/export", api.export)
}

// Handlers

func (api *auditApi) list(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))

	entries, next, err := api.svc.List(ctx.Request().Context(), limit, ctx.QueryParam("cursor"))
	if err != nil {
		return errors.Wrap(err, "listing audit entries")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return ctx.JSON(http.StatusOK, AuditListResponse{Entries: entries, NextCursor: next})
}

func (api *auditApi) export(ctx echo.Context) error {
	var all []audit.Entry
	var cursor string
	for {
		entries, next, err := api.svc.List(ctx.Request().Context(), exportPageSize, cursor)
		if err != nil {
			return errors.Wrap(err, "listing audit entries")
		}
		all = append(all, entries...)
		if next == "" {
			break
		}
		cursor = next
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+audit.Filename(time.Now())+`"`)
	res.WriteHeader(http.StatusOK)
	return errors.Wrap(audit.WriteCSV(res, all), "writing CSV export")
}

type AuditListResponse struct {
	Entries    []audit.Entry `json:"entries"`
	NextCursor string        `json:"next_cursor,omitempty"`
}
