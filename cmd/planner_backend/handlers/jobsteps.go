package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/prodplan/pkg/api/types/errors"
	apijobsteps "github.com/opst/prodplan/pkg/api/types/jobsteps"
	"github.com/opst/prodplan/pkg/domain"
	jobstepdb "github.com/opst/prodplan/pkg/domain/jobstep/db"
	"github.com/opst/prodplan/pkg/utils"
)

// GetReadyJobStepsHandler lists READY job steps for execution backends.
//
// Query parameters:
//
// - facility: processing facility. Empty means any facility.
//
// - limit: max number of job steps. 0 or omitted means unlimited.
func GetReadyJobStepsHandler(steps jobstepdb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		limit := 0
		if l := c.QueryParam("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 0 {
				return apierr.BadRequest("limit should be a non-negative integer", err)
			}
			limit = n
		}

		details, err := steps.Ready(ctx, c.QueryParam("facility"), limit)
		if err != nil {
			return apierr.FromDomain(err)
		}

		return c.JSON(http.StatusOK, utils.Map(details, apijobsteps.ComposeDetail))
	}
}

// PostJobStepRunningHandler marks the job step RUNNING.
func PostJobStepRunningHandler(steps jobstepdb.Interface, idParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param(idParam)

		if err := steps.SetState(ctx, id, domain.StepRunning, ""); err != nil {
			return apierr.FromDomain(err)
		}
		return respondJobStep(c, steps, id)
	}
}

// PostJobStepCompletedHandler marks the job step COMPLETED, with attributes of the output product.
//
// When the request has no generation time, now() is used.
func PostJobStepCompletedHandler(steps jobstepdb.Interface, idParam string, now func() time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param(idParam)

		req := new(apijobsteps.Completion)
		if err := c.Bind(req); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}
		completion, err := req.Parse(now())
		if err != nil {
			return apierr.BadRequest(err.Error(), err)
		}

		if err := steps.Complete(ctx, id, completion); err != nil {
			return apierr.FromDomain(err)
		}
		return respondJobStep(c, steps, id)
	}
}

// PostJobStepFailedHandler marks the job step FAILED.
func PostJobStepFailedHandler(steps jobstepdb.Interface, idParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param(idParam)

		req := new(apijobsteps.Failure)
		if err := c.Bind(req); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}

		if err := steps.SetState(ctx, id, domain.StepFailed, req.Message); err != nil {
			return apierr.FromDomain(err)
		}
		return respondJobStep(c, steps, id)
	}
}

func respondJobStep(c echo.Context, steps jobstepdb.Interface, id string) error {
	found, err := steps.Get(c.Request().Context(), []string{id})
	if err != nil {
		return apierr.FromDomain(err)
	}
	step, ok := found[id]
	if !ok {
		return apierr.NotFound()
	}
	return c.JSON(http.StatusOK, apijobsteps.ComposeSummary(step))
}
