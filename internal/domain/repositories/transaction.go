package repositories

import "context"

// TxFn runs with a context that carries the open transaction.
type TxFn func(ctx context.Context) error

// TransactionManager runs a TxFn inside one database transaction, rolling
// back when it returns an error.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
