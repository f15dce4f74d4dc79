package orm

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Coordinator shares one transaction across otherwise independent repository
// calls. Outside an explicit transaction every write runs in its own
// transaction that is committed when the call succeeds. Between Begin and
// Commit/Rollback all reads and writes use the shared transaction and
// per-call commits are suppressed.
//
// Coordinator is safe for use by multiple goroutines, but statements on the
// shared transaction are serialized: one repository call holds it at a time.
type Coordinator struct {
	db      *DB
	logger  *zap.Logger
	timeout time.Duration

	txMu    sync.Mutex // held by the call using tx; taken before mu
	mu      sync.Mutex // guards tx and aborted
	tx      *Tx
	aborted bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithStatementTimeout bounds every repository call. Zero disables it.
func WithStatementTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

// WithLogger sets the logger used for transaction events and release failures.
func WithLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator returns a Coordinator over db.
func NewCoordinator(db *DB, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{db: db, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DB returns the underlying database.
func (c *Coordinator) DB() *DB { return c.db }

// Begin starts the shared transaction. A second Begin before Commit or
// Rollback fails with ErrTxInProgress.
func (c *Coordinator) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil || c.aborted {
		return errors.WithHint(ErrTxInProgress, "finish the current transaction with Commit or Rollback first")
	}
	// The shared tx outlives the caller's context; database/sql would roll it
	// back as soon as ctx is cancelled.
	tx, err := c.db.Begin(context.WithoutCancel(ctx))
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	c.tx = tx
	c.logger.Debug("transaction started")
	return nil
}

// Commit commits the shared transaction and releases it. If an operation
// failed inside the transaction, the work was already rolled back: the state
// is cleared and ErrTxAborted is returned.
func (c *Coordinator) Commit() error {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		c.aborted = false
		return ErrTxAborted
	}
	if c.tx == nil {
		return ErrNoTx
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Commit(); err != nil {
		c.logger.Error("commit failed", zap.Error(err))
		return errors.Wrap(err, "commit transaction")
	}
	c.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls back the shared transaction and releases it.
func (c *Coordinator) Rollback() error {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		c.aborted = false
		return nil
	}
	if c.tx == nil {
		return ErrNoTx
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		c.logger.Error("rollback failed", zap.Error(err))
		return errors.Wrap(err, "rollback transaction")
	}
	c.logger.Debug("transaction rolled back")
	return nil
}

// InTransaction reports whether Begin has been called without a matching
// Commit or Rollback.
func (c *Coordinator) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx != nil || c.aborted
}

// Transaction runs fn inside Begin/Commit. If fn returns an error or panics,
// the transaction is rolled back.
func (c *Coordinator) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = c.Rollback()
			panic(p)
		}
	}()
	if err := fn(ctx); err != nil {
		if rbErr := c.Rollback(); rbErr != nil {
			return errors.WithSecondaryError(err, rbErr)
		}
		return err
	}
	return c.Commit()
}

// unit is the connection borrowed by one repository call.
type unit struct {
	c         *Coordinator
	q         Querier
	own       *Tx // standalone transaction
	shared    bool
	committed bool
	cancel    context.CancelFunc
}

// acquire hands out the shared transaction when one is open. Otherwise
// ownTx callers get their own transaction and the rest use the pool.
func (c *Coordinator) acquire(ctx context.Context, ownTx bool) (context.Context, *unit, error) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	u := &unit{c: c, cancel: cancel}

	for {
		c.mu.Lock()
		aborted, tx := c.aborted, c.tx
		c.mu.Unlock()
		if aborted {
			cancel()
			return ctx, nil, errors.WithHint(ErrTxAborted, "call Rollback to clear the failed transaction")
		}
		if tx == nil {
			break
		}
		// Lock order is txMu then mu; re-check that tx is still current.
		c.txMu.Lock()
		c.mu.Lock()
		current := c.tx == tx
		c.mu.Unlock()
		if current {
			u.q = tx
			u.shared = true
			return ctx, u, nil
		}
		c.txMu.Unlock()
	}

	if !ownTx {
		u.q = c.db
		return ctx, u, nil
	}
	tx, err := c.db.Begin(ctx)
	if err != nil {
		cancel()
		return ctx, nil, errors.Wrap(err, "begin transaction")
	}
	u.own = tx
	u.q = tx
	return ctx, u, nil
}

// commit commits a standalone write. Inside the shared transaction it is a
// no-op.
func (u *unit) commit() error {
	if u.own == nil {
		return nil
	}
	if err := u.own.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	u.committed = true
	return nil
}

// abort rolls back the shared transaction after a failed write so that no
// partial work can be committed later.
func (u *unit) abort() {
	if !u.shared {
		return
	}
	u.c.mu.Lock()
	defer u.c.mu.Unlock()
	if tx := u.c.tx; tx != nil {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			u.c.logger.Error("rollback after failure", zap.Error(err))
		}
		u.c.tx = nil
		u.c.aborted = true
	}
}

// release returns the connection. An uncommitted standalone transaction is
// rolled back; a release failure is logged and returned, attached to err if
// the call already failed.
func (u *unit) release(err error) error {
	defer u.cancel()
	if u.shared {
		u.c.txMu.Unlock()
		return err
	}
	if u.own == nil || u.committed {
		return err
	}
	rbErr := u.own.Rollback()
	if rbErr == nil || errors.Is(rbErr, sql.ErrTxDone) {
		return err
	}
	u.c.logger.Error("release failed", zap.Error(rbErr))
	if err != nil {
		return errors.WithSecondaryError(err, rbErr)
	}
	return errors.Wrap(rbErr, "release")
}

// run executes fn on a borrowed connection. A failed write inside the shared
// transaction rolls it back and leaves the coordinator aborted.
func (c *Coordinator) run(ctx context.Context, write bool, fn func(ctx context.Context, q Querier) error) error {
	return c.do(ctx, write, write, fn)
}

// snapshot runs a read made of several statements in one transaction so
// every statement sees the same rows. Inside the shared transaction it is
// the same as run.
func (c *Coordinator) snapshot(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return c.do(ctx, false, true, fn)
}

func (c *Coordinator) do(ctx context.Context, write, ownTx bool, fn func(ctx context.Context, q Querier) error) (err error) {
	ctx, u, err := c.acquire(ctx, ownTx)
	if err != nil {
		return err
	}
	defer func() { err = u.release(err) }()

	if err = fn(ctx, u.q); err != nil {
		if write {
			u.abort()
		}
		return err
	}
	return u.commit()
}
