package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/account"
)

type accountApi struct {
	svc account.ServiceInterface
}

func registerAccountAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc account.ServiceInterface) {
	api := accountApi{svc: svc}

	ag := g.Group("/accounts", jwt)
	ag.PUT("", api.upsert, adminMiddleware())
	ag.GET("/:id", api.retrieve, staffMiddleware())
	ag.POST("/:id/suspend", api.suspend, adminMiddleware())
	ag.POST("/:id/unsuspend", api.unsuspend, adminMiddleware())
	ag.DELETE("/:id", api.destroy, adminMiddleware())
}

// Handlers

// upsert syncs the identity-provider projection of an account.
func (api *accountApi) upsert(ctx echo.Context) error {
	var data account.Account
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Account")
	}

	acct, err := api.svc.Upsert(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "upserting account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) retrieve(ctx echo.Context) error {
	acct, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) suspend(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	acct, err := api.svc.Suspend(ctx.Request().Context(), claims.Actor(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "suspending account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) unsuspend(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	acct, err := api.svc.Unsuspend(ctx.Request().Context(), claims.Actor(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unsuspending account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.Delete(ctx.Request().Context(), claims.Actor(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return ctx.NoContent(http.StatusNoContent)
}
