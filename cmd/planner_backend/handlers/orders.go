package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/prodplan/pkg/api/types/errors"
	apiorders "github.com/opst/prodplan/pkg/api/types/orders"
	orderdb "github.com/opst/prodplan/pkg/domain/order/db"
)

// PostOrderHandler takes a processing order in. The order is stored as INITIAL.
func PostOrderHandler(orders orderdb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		req := new(apiorders.Order)
		if err := c.Bind(req); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}
		order, err := req.Parse()
		if err != nil {
			return apierr.FromDomain(err)
		}

		if err := orders.Register(ctx, &order); err != nil {
			return apierr.FromDomain(err)
		}
		return respondOrder(c, orders, order.Id)
	}
}

func GetOrderHandler(orders orderdb.Interface, idParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return respondOrder(c, orders, c.Param(idParam))
	}
}

// PostOrderStateHandler changes the state of an order by an operator.
//
// Requestable states are APPROVED, RELEASED, SUSPENDING and CLOSED.
func PostOrderStateHandler(orders orderdb.Interface, idParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param(idParam)

		req := new(apiorders.StateChange)
		if err := c.Bind(req); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}
		state, err := req.Parse()
		if err != nil {
			return apierr.BadRequest(err.Error(), err)
		}

		if err := orders.SetState(ctx, id, state, req.Message); err != nil {
			return apierr.FromDomain(err)
		}
		return respondOrder(c, orders, id)
	}
}

func respondOrder(c echo.Context, orders orderdb.Interface, id string) error {
	order, err := orders.Get(c.Request().Context(), id)
	if err != nil {
		return apierr.FromDomain(err)
	}
	return c.JSON(http.StatusOK, apiorders.Compose(order))
}
