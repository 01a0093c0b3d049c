package db

import "context"

// SchemaInterface is the versioned schema of the planner database.
type SchemaInterface interface {
	// apply all versions in the repository which are newer than the database, in one transaction.
	Upgrade(ctx context.Context) error

	// the version of the schema applied to the database. 0 means nothing is applied.
	Version(ctx context.Context) (int, error)

	// versions in the repository which are not applied yet, in ascending order.
	Pending(ctx context.Context) ([]int, error)

	// Context returns a context which is cancelled when the schema repository gets ahead of the database.
	//
	// Args
	//
	// - ctx: parent context
	//
	// Returns
	//
	// - context.Context: cancelled with the cause when the database is outdated or the repository is unreadable.
	//
	// - context.CancelFunc: stops watching.
	Context(ctx context.Context) (context.Context, context.CancelFunc)
}
