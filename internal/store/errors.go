package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known
// failure conditions. Callers should use [errors.Is] to match against
// these values.
var (
	// ErrAccountNotFound is returned when a query expected to match an
	// account produces an empty result set.
	ErrAccountNotFound = errors.New("account was not found")

	// ErrEmailAlreadyExists is returned when an account insert violates the
	// unique email constraint.
	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrDeviceNotFound is returned when a device lookup, removal, or
	// update matches no row owned by the caller's account. A device owned
	// by a different account is reported identically, so existence never
	// leaks across accounts.
	ErrDeviceNotFound = errors.New("device was not found")

	// ErrMagicLinkNotFound is returned when no magic link matches the
	// presented token hash.
	ErrMagicLinkNotFound = errors.New("magic link was not found")

	// ErrSnapshotNotFound is returned when a project has no persisted
	// snapshot yet.
	ErrSnapshotNotFound = errors.New("snapshot was not found")
)

// Low-level database operation errors, returned (or wrapped) when a
// SQL-level operation fails before any domain logic applies.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a query against the
	// database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrScanningRow is returned when scanning column values from a result
	// row into a destination struct fails.
	ErrScanningRow = errors.New("failed to scan row")
)
