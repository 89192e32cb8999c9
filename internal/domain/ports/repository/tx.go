package repository

import "context"

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres); repositories must gracefully accept NoTX (nil) for
// the non-transactional path.
type Tx interface{}

// NoTX is the explicit "no transaction" handle.
var NoTX Tx

// TransactionManager runs a read-modify-write closure inside a storage
// transaction. Implementations must retry the closure a bounded number of
// times when the storage layer reports a conflicting concurrent write
// (serialization failure / deadlock), so callers never write their own retry
// loops. The closure must therefore be safe to re-execute.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
