package db

import (
	catalogdb "github.com/opst/prodplan/pkg/domain/catalog/db"
	jobstepdb "github.com/opst/prodplan/pkg/domain/jobstep/db"
	orderdb "github.com/opst/prodplan/pkg/domain/order/db"
)

// PlannerDatabase bundles repositories the planner works on.
type PlannerDatabase interface {
	Catalog() catalogdb.Interface
	JobStep() jobstepdb.Interface
	Order() orderdb.Interface
	Close() error
}
