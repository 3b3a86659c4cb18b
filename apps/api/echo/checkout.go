package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edusource/core/checkout"
	"github.com/trezcool/edusource/core/course"
)

// contextCheckoutKey holds the checkout.Snapshot of a failed transition, added to the error body.
const contextCheckoutKey = "checkout"

type checkoutApi struct {
	courseSvc *course.Service
	registry  *checkout.Registry
	validate  *validator.Validate
}

func registerCheckoutAPI(
	g *echo.Group,
	auth authMiddlewares,
	courseSvc *course.Service,
	registry *checkout.Registry,
	validate *validator.Validate,
) {
	api := checkoutApi{
		courseSvc: courseSvc,
		registry:  registry,
		validate:  validate,
	}

	cg := g.Group("/courses/:id/checkout", auth.optional)
	cg.GET("", api.retrieve)
	cg.POST("", api.start)

	// gateway events
	cg.POST("/success", api.gatewaySuccess)
	cg.POST("/failure", api.gatewayFailure)
	cg.POST("/cancel", api.gatewayCancel)

	cg.POST("/retry-verification", api.retryVerification)
	cg.POST("/reset", api.reset)
}

// orchestrator returns the checkout of the caller and the course in path.
func (api *checkoutApi) orchestrator(ctx echo.Context) (*checkout.Orchestrator, error) {
	sess := getContextSession(ctx)
	if sess.User != nil && !sess.User.CanEnroll() {
		return nil, errHttpForbidden
	}
	crs, err := api.courseSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return nil, errors.Wrap(err, "getting course")
	}
	return api.registry.Get(sess, crs), nil
}

func respondCheckout(ctx echo.Context, snap checkout.Snapshot, err error) error {
	if err != nil {
		ctx.Set(contextCheckoutKey, snap)
		return err
	}
	return ctx.JSON(http.StatusOK, snap)
}

// Handlers

func (api *checkoutApi) retrieve(ctx echo.Context) error {
	o, err := api.orchestrator(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o.Snapshot())
}

func (api *checkoutApi) start(ctx echo.Context) error {
	o, err := api.orchestrator(ctx)
	if err != nil {
		return err
	}
	snap, err := o.Start(ctx.Request().Context())
	return respondCheckout(ctx, snap, err)
}

func (api *checkoutApi) gatewaySuccess(ctx echo.Context) error {
	var data checkout.PaymentConfirmation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentConfirmation")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	o, err := api.orchestrator(ctx)
	if err != nil {
		return err
	}
	snap, err := o.OnGatewaySuccess(ctx.Request().Context(), data)
	return respondCheckout(ctx, snap, err)
}

func (api *checkoutApi) gatewayFailure(ctx echo.Context) error {
	var data GatewayFailureRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GatewayFailureRequest")
	}

	o, err := api.orchestrator(ctx)
	if err != nil {
		return err
	}
	snap, err := o.OnGatewayFailure(ctx.Request().Context(), data.Description)
	return respondCheckout(ctx, snap, err)
}

func (api *checkoutApi) gatewayCancel(ctx echo.Context) error {
	o, err := api.orchestrator(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o.OnGatewayCancel(ctx.Request().Context()))
}

func (api *checkoutApi) retryVerification(ctx echo.Context) error {
	o, err := api.orchestrator(ctx)
	if err != nil {
		return err
	}
	snap, err := o.RetryVerification(ctx.Request().Context())
	return respondCheckout(ctx, snap, err)
}

func (api *checkoutApi) reset(ctx echo.Context) error {
	o, err := api.orchestrator(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o.Reset(ctx.Request().Context()))
}
