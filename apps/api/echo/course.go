package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	"github.com/trezcool/edusource/core/user"
)

var errCourseNotFree = errors.New("this course is not free, use the checkout")

type courseApi struct {
	courseSvc *course.Service
	enrollSvc *enrollment.Service
	validate  *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	auth authMiddlewares,
	courseSvc *course.Service,
	enrollSvc *enrollment.Service,
	validate *validator.Validate,
) {
	api := courseApi{
		courseSvc: courseSvc,
		enrollSvc: enrollSvc,
		validate:  validate,
	}

	cg := g.Group("/courses")
	cg.GET("", api.query, auth.optional)
	cg.POST("", api.create, auth.required, roleMiddleware(user.RoleInstructor, user.RoleAdmin))
	cg.GET("/:id", api.retrieve, auth.optional)
	cg.POST("/:id/enroll", api.enroll, auth.optional)

	mg := g.Group("/me", auth.required)
	mg.GET("/courses", api.myCourses)
	mg.GET("/enrollments", api.myEnrollments)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	var q CourseQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to CourseQuery")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, course.OrderingFields...)

	courses, err := api.courseSvc.Query(ctx.Request().Context(), q.Filter(), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, newCourseResponses(courses, getContextSession(ctx).User))
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}

	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.IsInstructor() || data.AuthorID == "" {
		data.AuthorID = usr.ID
		data.AuthorName = usr.Name
	}

	crs, err := api.courseSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, NewCourseResponse(crs, &usr))
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.courseSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, NewCourseResponse(crs, getContextSession(ctx).User))
}

// enroll enrolls the caller in a free course, then re-checks its status from the store.
func (api *courseApi) enroll(ctx echo.Context) error {
	sess := getContextSession(ctx)
	if !sess.Authenticated() {
		return enrollment.NewError(enrollment.AuthRequired, "", nil)
	}
	usr := *sess.User
	if !usr.CanEnroll() {
		return errHttpForbidden
	}

	reqCtx := ctx.Request().Context()
	crs, err := api.courseSvc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	if crs.Type != course.Free {
		return core.NewValidationError(errCourseNotFree)
	}
	if enrollment.Resolve(crs, &usr) == enrollment.Enrolled {
		return ctx.JSON(http.StatusOK, NewCourseResponse(crs, &usr))
	}

	if err = api.enrollSvc.EnrollFree(reqCtx, usr.ID, crs.ID, crs.Title); err != nil {
		return errors.Wrap(err, "enrolling in free course")
	}
	if crs, err = api.courseSvc.Get(reqCtx, crs.ID); err != nil {
		return errors.Wrap(err, "refreshing course")
	}
	api.enrollSvc.Notify(context.WithoutCancel(reqCtx), usr, crs)

	return ctx.JSON(http.StatusCreated, NewCourseResponse(crs, &usr))
}

func (api *courseApi) myCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	courses, err := api.courseSvc.Enrolled(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrolled courses")
	}
	return ctx.JSON(http.StatusOK, newCourseResponses(courses, &usr))
}

func (api *courseApi) myEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	recs, err := api.enrollSvc.Records(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrollment records")
	}
	if recs == nil {
		recs = []enrollment.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}
