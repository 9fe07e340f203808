package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/enroll"
)

type enrollApi struct {
	svc enroll.ServiceInterface
}

func registerEnrollAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc enroll.ServiceInterface) {
	api := enrollApi{svc: svc}

	ag := g.Group("", jwt)
	ag.GET("/access/:courseID", api.access)

	eg := ag.Group("/enrollments")
	eg.POST("", api.create)
	eg.GET("", api.query, staffMiddleware())
	eg.PATCH("/:studentID/:courseID/payment", api.updatePayment)
	eg.POST("/:studentID/:courseID/verify", api.verify, staffMiddleware())
	eg.POST("/:studentID/:courseID/reset", api.reset, staffMiddleware())
	eg.GET("/:studentID/:courseID", api.retrieve, staffMiddleware())

	ag.GET("/courses/:courseID/stats", api.stats, staffMiddleware())
}

// Handlers

func (api *enrollApi) access(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	access, err := api.svc.GetAccess(ctx.Request().Context(), claims.Subject, ctx.Param("courseID"))
	if err != nil {
		return errors.Wrap(err, "getting access")
	}
	return ctx.JSON(http.StatusOK, access)
}

func (api *enrollApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}

	var rec enroll.Record
	if data.Code != "" {
		rec, err = api.svc.EnrollWithCode(ctx.Request().Context(), claims.Subject, data.Code)
	} else {
		rec, err = api.svc.EnrollDirect(ctx.Request().Context(), claims.Subject, data.CourseID)
	}
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *enrollApi) updatePayment(ctx echo.Context) error {
	var data PaymentUpdateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentUpdateRequest")
	}

	rec, err := api.svc.UpdatePaymentStatus(ctx.Request().Context(), enroll.UpdatePayment{
		StudentID: ctx.Param("studentID"),
		CourseID:  ctx.Param("courseID"),
		Status:    data.Status,
	})
	if err != nil {
		return errors.Wrap(err, "updating payment status")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *enrollApi) verify(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.Verify(ctx.Request().Context(), claims.Actor(), ctx.Param("studentID"), ctx.Param("courseID"))
	if err != nil {
		return errors.Wrap(err, "verifying enrollment")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *enrollApi) reset(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.ResetAccount(ctx.Request().Context(), claims.Actor(), ctx.Param("studentID"), ctx.Param("courseID"))
	if err != nil {
		return errors.Wrap(err, "resetting enrollment")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *enrollApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.Get(ctx.Request().Context(), ctx.Param("studentID"), ctx.Param("courseID"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *enrollApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := new(enroll.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []enroll.Record{})
	}

	recs, err := api.svc.Query(ctx.Request().Context(), claims.Actor(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if recs == nil {
		recs = []enroll.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *enrollApi) stats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), claims.Actor(), ctx.Param("courseID"))
	if err != nil {
		return errors.Wrap(err, "getting course stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

type (
	EnrollRequest struct {
		Code     string `json:"code"`
		CourseID string `json:"course_id"`
	}

	PaymentUpdateRequest struct {
		Status string `json:"status" validate:"required"`
	}
)
