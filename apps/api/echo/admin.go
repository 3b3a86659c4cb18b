package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edusource/core/checkout"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	"github.com/trezcool/edusource/core/user"
)

type adminApi struct {
	courseSvc *course.Service
	enrollSvc *enrollment.Service
	registry  *checkout.Registry
	validate  *validator.Validate
}

func registerAdminAPI(
	g *echo.Group,
	auth authMiddlewares,
	courseSvc *course.Service,
	enrollSvc *enrollment.Service,
	registry *checkout.Registry,
	validate *validator.Validate,
) {
	api := adminApi{
		courseSvc: courseSvc,
		enrollSvc: enrollSvc,
		registry:  registry,
		validate:  validate,
	}

	ag := g.Group("/admin", auth.required, roleMiddleware(user.RoleAdmin))
	ag.POST("/courses/:id/grant", api.grant)
}

// grant enrolls a user by hand, e.g. when their payment was captured but could not be verified.
// Their stuck checkout, if any, is reset.
func (api *adminApi) grant(ctx echo.Context) error {
	var data GrantRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GrantRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	crs, err := api.courseSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	rec, err := api.enrollSvc.Grant(reqCtx, crs, data.UserID, data.PaymentID)
	if err != nil {
		return errors.Wrap(err, "granting enrollment")
	}

	if o, ok := api.registry.Lookup(data.UserID, crs.ID); ok {
		o.Reset(reqCtx)
	}
	if rec.Status == enrollment.StatusCompleted {
		api.enrollSvc.Notify(context.WithoutCancel(reqCtx), user.User{ID: data.UserID}, crs)
	}
	return ctx.JSON(http.StatusCreated, rec)
}
