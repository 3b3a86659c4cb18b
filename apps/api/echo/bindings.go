package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/edusource/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=title,-price`. Fields outside allowed are dropped.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	ord.Orderings = core.ParseOrderings(ctx.QueryParam(orderingParam), allowed...)
}
