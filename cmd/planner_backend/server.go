package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	handlers "github.com/opst/prodplan/cmd/planner_backend/handlers"
	plannerdb "github.com/opst/prodplan/pkg/domain/planner/db"
	"github.com/opst/prodplan/pkg/utils/echoutil"
)

var API_ROOT = "/api/backend"

func api(subpath string) string {
	if !strings.HasSuffix(subpath, "/") {
		subpath += "/"
	}
	return fmt.Sprintf("%s/%s", API_ROOT, subpath)
}

func BuildServer(db plannerdb.PlannerDatabase, loglevel string) *echo.Echo {
	e := echo.New()
	echoutil.SetLevel(e, loglevel)

	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}

	e.Pre(middleware.AddTrailingSlash())
	e.Use(echoutil.LogHandlerFunc)

	e.GET(api("jobsteps/ready"), handlers.GetReadyJobStepsHandler(db.JobStep()))
	e.POST(api("jobsteps/:stepId/running"), handlers.PostJobStepRunningHandler(db.JobStep(), "stepId"))
	e.POST(api("jobsteps/:stepId/completed"), handlers.PostJobStepCompletedHandler(db.JobStep(), "stepId", time.Now))
	e.POST(api("jobsteps/:stepId/failed"), handlers.PostJobStepFailedHandler(db.JobStep(), "stepId"))

	e.POST(api("orders"), handlers.PostOrderHandler(db.Order()))
	e.GET(api("orders/:orderId"), handlers.GetOrderHandler(db.Order(), "orderId"))
	e.POST(api("orders/:orderId/state"), handlers.PostOrderStateHandler(db.Order(), "orderId"))

	e.POST(api("rules"), handlers.PostRuleHandler(db.Catalog()))
	e.POST(api("rules/check"), handlers.PostRuleCheckHandler(db.Catalog()))

	return e
}
