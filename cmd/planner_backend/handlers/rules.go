package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/prodplan/pkg/api/types/errors"
	apirules "github.com/opst/prodplan/pkg/api/types/rules"
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	"github.com/opst/prodplan/pkg/domain/rule"
)

// PostRuleHandler compiles and registers a selection rule.
//
// Simple rules are merged into registered ones for the same source, mode and processors.
// The response is the compiled rule, not the merged one.
func PostRuleHandler(catalog catalogdb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		req := new(apirules.Request)
		if err := c.Bind(req); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}

		registered, err := catalog.RegisterSelectionRule(ctx, req.Target, req.Rule, req.Mode, req.Processors)
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, apirules.Compose(registered))
	}
}

// PostRuleCheckHandler compiles a selection rule without registering.
func PostRuleCheckHandler(catalog catalogdb.Reader) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		req := new(apirules.Request)
		if err := c.Bind(req); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}

		target, err := catalog.ProductClass(ctx, req.Target)
		if err != nil {
			return apierr.FromDomain(err)
		}
		classes, err := catalog.ProductClasses(ctx, target.Mission)
		if err != nil {
			return apierr.FromDomain(err)
		}

		compiled, err := rule.Compile(target, req.Rule, req.Mode, rule.AmongClasses(classes))
		if err != nil {
			return apierr.FromDomain(err)
		}
		for i := range compiled.Rules {
			compiled.Rules[i].ApplicableProcessors = req.Processors
		}
		return c.JSON(http.StatusOK, apirules.Compose(compiled))
	}
}
