package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	handlers "github.com/opst/prodplan/cmd/planner_backend/handlers"
	httptestutil "github.com/opst/prodplan/internal/testutils/http"
	apiorders "github.com/opst/prodplan/pkg/api/types/orders"
	"github.com/opst/prodplan/pkg/cmp"
	"github.com/opst/prodplan/pkg/domain"
	ordermock "github.com/opst/prodplan/pkg/domain/order/db/mock"
)

func TestPostOrder(t *testing.T) {
	type then struct {
		status     int
		registered *domain.ProcessingOrder
	}

	theory := func(body string, then then) func(*testing.T) {
		return func(t *testing.T) {
			orders := ordermock.New()
			var stored domain.ProcessingOrder
			orders.Impl.Register = func(_ context.Context, order *domain.ProcessingOrder) error {
				order.Id = "order-1"
				order.State = domain.OrderInitial
				stored = *order
				return nil
			}
			orders.Impl.Get = func(_ context.Context, id string) (domain.ProcessingOrder, error) {
				if id != stored.Id {
					return domain.ProcessingOrder{}, &domain.Missing{Table: "processing order", Identity: id}
				}
				return stored, nil
			}

			e := echo.New()
			c, resp := httptestutil.PostJSON(e, "/api/backend/orders/", body)
			err := handlers.PostOrderHandler(orders)(c)

			if then.registered == nil {
				if actual := statusOf(err); actual != then.status {
					t.Errorf("status: actual %d, expected %d (%+v)", actual, then.status, err)
				}
				if orders.Calls.Register.Times() != 0 {
					t.Error("Register is called")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			if orders.Calls.Register.Times() != 1 {
				t.Fatalf("Register is called %d times", orders.Calls.Register.Times())
			}
			actual := orders.Calls.Register[0]
			expected := *then.registered
			if actual.Identifier != expected.Identifier ||
				actual.Mission != expected.Mission ||
				actual.Slicing != expected.Slicing ||
				actual.SliceDuration != expected.SliceDuration ||
				actual.SliceOverlap != expected.SliceOverlap ||
				!actual.Window.Equal(expected.Window) ||
				!cmp.SliceEq(actual.RequestedClasses, expected.RequestedClasses) ||
				!cmp.SliceEq(actual.RequestedProcessors, expected.RequestedProcessors) ||
				actual.ProcessingMode != expected.ProcessingMode {
				t.Errorf("registered:\n===actual===\n%+v\n===expected===\n%+v", actual, expected)
			}
			if p, ok := actual.Filters["revision"]; !ok || !p.Equal(domain.IntegerParam(2)) {
				t.Errorf("filters: %+v", actual.Filters)
			}

			got := decode[apiorders.Order](t, resp)
			if got.Id != "order-1" || got.State != string(domain.OrderInitial) {
				t.Errorf("response: %+v", got)
			}
		}
	}

	t.Run("it takes an order in", theory(
		`{
	"identifier": "L2 reprocessing",
	"mission": "PTM",
	"window": {"start": "2024-03-01T00:00:00Z", "stop": "2024-03-02T00:00:00Z"},
	"slicing": "TIME_SLICE",
	"sliceDuration": "6h",
	"sliceOverlap": "10m",
	"requestedClasses": ["class-l2"],
	"requestedProcessors": ["PTML2_1.0"],
	"processingMode": "OFFL",
	"filters": {"revision": {"type": "INTEGER", "value": "2"}}
}`,
		then{
			status: http.StatusOK,
			registered: &domain.ProcessingOrder{
				Identifier:          "L2 reprocessing",
				Mission:             "PTM",
				Window:              domain.Window(base, base.Add(24*time.Hour)),
				Slicing:             domain.SliceByTime,
				SliceDuration:       6 * time.Hour,
				SliceOverlap:        10 * time.Minute,
				RequestedClasses:    []string{"class-l2"},
				RequestedProcessors: []string{"PTML2_1.0"},
				ProcessingMode:      "OFFL",
			},
		},
	))

	t.Run("it refuses unknown slicing", theory(
		`{"identifier": "o", "mission": "PTM", "slicing": "WEEKLY", "requestedClasses": ["class-l2"]}`,
		then{status: http.StatusBadRequest},
	))

	t.Run("it refuses malformed durations", theory(
		`{"identifier": "o", "mission": "PTM", "slicing": "TIME_SLICE", "sliceDuration": "six hours"}`,
		then{status: http.StatusBadRequest},
	))

	t.Run("it refuses orders without identifier", theory(
		`{"mission": "PTM", "slicing": "NONE"}`,
		then{status: http.StatusBadRequest},
	))

	t.Run("it refuses broken json", theory(
		`{"identifier": `,
		then{status: http.StatusBadRequest},
	))
}

func TestGetOrder(t *testing.T) {
	orders := ordermock.New()
	orders.Impl.Get = func(_ context.Context, id string) (domain.ProcessingOrder, error) {
		if id == "order-1" {
			return domain.ProcessingOrder{
				Id: "order-1", Identifier: "o", Mission: "PTM",
				State: domain.OrderPlanned, Slicing: domain.SliceNone,
			}, nil
		}
		return domain.ProcessingOrder{}, &domain.Missing{Table: "processing order", Identity: id}
	}

	for id, status := range map[string]int{
		"order-1": http.StatusOK,
		"order-2": http.StatusNotFound,
	} {
		t.Run(id, func(t *testing.T) {
			e := echo.New()
			c, resp := httptestutil.Get(e, "/api/backend/orders/"+id+"/", httptestutil.Param("orderId", id))

			err := handlers.GetOrderHandler(orders, "orderId")(c)
			if status != http.StatusOK {
				if actual := statusOf(err); actual != status {
					t.Errorf("status: actual %d, expected %d", actual, status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			got := decode[apiorders.Order](t, resp)
			if got.Id != id || got.State != string(domain.OrderPlanned) {
				t.Errorf("response: %+v", got)
			}
		})
	}
}

func TestPostOrderState(t *testing.T) {
	type when struct {
		body string
		err  error
	}
	type then struct {
		status int
		state  domain.OrderState
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			orders := ordermock.New()
			orders.Impl.SetState = func(context.Context, string, domain.OrderState, string) error {
				return when.err
			}
			orders.Impl.Get = func(_ context.Context, id string) (domain.ProcessingOrder, error) {
				return domain.ProcessingOrder{Id: id, State: then.state}, nil
			}

			e := echo.New()
			c, resp := httptestutil.PostJSON(e, "/api/backend/orders/order-1/state/", when.body, httptestutil.Param("orderId", "order-1"))

			err := handlers.PostOrderStateHandler(orders, "orderId")(c)
			if then.status != http.StatusOK {
				if actual := statusOf(err); actual != then.status {
					t.Errorf("status: actual %d, expected %d (%+v)", actual, then.status, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %+v", err)
			}
			if orders.Calls.SetState.Times() != 1 {
				t.Fatalf("SetState is called %d times", orders.Calls.SetState.Times())
			}
			if call := orders.Calls.SetState[0]; call.Id != "order-1" || call.State != then.state {
				t.Errorf("SetState is called with %+v", call)
			}
			if got := decode[apiorders.Order](t, resp); got.State != string(then.state) {
				t.Errorf("response: %+v", got)
			}
		}
	}

	t.Run("it approves an order", theory(
		when{body: `{"state": "APPROVED"}`},
		then{status: http.StatusOK, state: domain.OrderApproved},
	))

	t.Run("it releases an order", theory(
		when{body: `{"state": "RELEASED"}`},
		then{status: http.StatusOK, state: domain.OrderReleased},
	))

	t.Run("it refuses states which operators can not request", theory(
		when{body: `{"state": "PLANNED"}`},
		then{status: http.StatusBadRequest},
	))

	t.Run("it refuses unknown states", theory(
		when{body: `{"state": "PAUSED"}`},
		then{status: http.StatusBadRequest},
	))

	t.Run("it responds 409 on invalid transitions", theory(
		when{
			body: `{"state": "RELEASED"}`,
			err:  &domain.StateChangingError{Entity: "order order-1", From: "INITIAL", To: "RELEASED"},
		},
		then{status: http.StatusConflict},
	))

	t.Run("it responds 404 for unknown orders", theory(
		when{body: `{"state": "CLOSED"}`, err: &domain.Missing{Table: "processing order", Identity: "order-1"}},
		then{status: http.StatusNotFound},
	))
}
