package orm

import "github.com/cockroachdb/errors"

var (
	// ErrNotFound is returned when a query expects exactly one row but finds none.
	ErrNotFound = errors.New("orm: not found")

	// ErrAmbiguous is returned when a single-record fetch matches more than one row.
	ErrAmbiguous = errors.New("orm: more than one record matched")

	// ErrInvalidArgument is returned when a filter or value map names an
	// undeclared field. It is raised before any SQL is executed.
	ErrInvalidArgument = errors.New("orm: invalid argument")

	// ErrMissingField is returned when an INSERT lacks a required field.
	ErrMissingField = errors.New("orm: missing required field")

	// ErrUnknownAssociation is returned when a requested association is not
	// declared for the entity.
	ErrUnknownAssociation = errors.New("orm: unknown association")

	// ErrNoSelfJoin is returned when a hierarchy walk is requested on an entity
	// without a self-join descriptor.
	ErrNoSelfJoin = errors.New("orm: entity has no self-join table")

	// ErrLookup is returned when a referenced entity cannot be resolved to an id.
	ErrLookup = errors.New("orm: cannot find referenced record")

	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("orm: unique constraint violated")

	// ErrTxInProgress is returned by Begin while another explicit transaction is open.
	ErrTxInProgress = errors.New("orm: transaction already in progress")

	// ErrNoTx is returned by Commit and Rollback when no transaction is open.
	ErrNoTx = errors.New("orm: no transaction in progress")

	// ErrTxAborted is returned for operations issued after a failure inside an
	// explicit transaction, and by Commit once such a failure has rolled the
	// shared transaction back.
	ErrTxAborted = errors.New("orm: transaction aborted")
)
