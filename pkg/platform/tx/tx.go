// Package tx carries a SQL transaction in the context so the licence store
// and the outbox join the same transaction: a status change and its domain
// event commit together or not at all.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context. The RunInTx boundary in
// cmd/server calls this; stores pick it up via From.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts the SQL transaction if one is riding in the context. Stores
// fall back to their plain connection pool when there is none.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
