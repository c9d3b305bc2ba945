package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "cvl/pkg/domain-errors"
	txcontext "cvl/pkg/platform/tx"
)

const defaultLicenceTxTimeout = 5 * time.Second

// licencePostgresTx implements service.StoreTx over a database transaction.
// The transaction rides in the context so the licence store and the outbox
// both join it: a status change and its event commit together or not at all.
type licencePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newLicencePostgresTx(db *sql.DB) *licencePostgresTx {
	return &licencePostgresTx{db: db}
}

func (t *licencePostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLicenceTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
