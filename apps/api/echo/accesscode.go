package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/accesscode"
)

type codeApi struct {
	svc accesscode.ServiceInterface
}

func registerAccessCodeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc accesscode.ServiceInterface) {
	api := codeApi{svc: svc}

	cg := g.Group("/codes", jwt)
	cg.POST("", api.issue, adminMiddleware())
	cg.POST("/:code/revoke", api.revoke, adminMiddleware())
	cg.GET("", api.query, staffMiddleware())
}

// Handlers

func (api *codeApi) issue(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data accesscode.IssueCode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IssueCode")
	}

	code, err := api.svc.Issue(ctx.Request().Context(), claims.Actor(), data)
	if err != nil {
		return errors.Wrap(err, "issuing code")
	}
	return ctx.JSON(http.StatusCreated, code)
}

func (api *codeApi) revoke(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	code, err := api.svc.Revoke(ctx.Request().Context(), claims.Actor(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "revoking code")
	}
	return ctx.JSON(http.StatusOK, code)
}

func (api *codeApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := new(accesscode.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []accesscode.AccessCode{})
	}

	codes, err := api.svc.Query(ctx.Request().Context(), claims.Actor(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying codes")
	}
	if codes == nil {
		codes = []accesscode.AccessCode{}
	}
	return ctx.JSON(http.StatusOK, codes)
}
