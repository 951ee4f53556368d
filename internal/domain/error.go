package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Usage gate / ledger errors
	ErrNotActive          = errors.New("plan is not active")
	ErrNoCreditsRemaining = errors.New("no credits remaining")
	ErrUnknownPlan        = errors.New("unknown plan")

	// Reconciler outcomes
	ErrDuplicateEvent = errors.New("event already processed")
	ErrOrphanEvent    = errors.New("event matches no user")
	ErrMalformedEvent = errors.New("malformed payment event")

	// Transient failures surfaced after bounded retries
	ErrRetryLater = errors.New("transient conflict, retry later")

	ErrInvalidExecContext = errors.New("invalid executor context")
)
