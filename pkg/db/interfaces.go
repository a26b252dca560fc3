package db

import "context"

// Driver is the seam between the executor and a concrete database client.
// Implementations must be safe for concurrent use.
type Driver interface {
	Query(ctx context.Context, req QueryRequest) ([]Row, error)
	Exec(ctx context.Context, req QueryRequest) error
	Ping(ctx context.Context) error
	Close()
}

// Ensure that the concrete drivers implement the interface
var (
	_ Driver = (*PoolDriver)(nil)
	_ Driver = EmptyDriver{}
)
