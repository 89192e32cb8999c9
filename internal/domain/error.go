package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrUnauthenticated      = errors.New("caller identity missing or invalid")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrQuotaExhausted       = errors.New("scan quota exhausted for current billing period")
	ErrTrialAlreadyExtended = errors.New("trial has already been extended once")
	ErrTrialWindowClosed    = errors.New("trial extension window has closed")
	ErrTrialStillActive     = errors.New("trial has not ended yet")
	ErrPaymentTerminal      = errors.New("payment already in a terminal state")
	ErrProviderUnavailable  = errors.New("payment provider unavailable")
	ErrBadSignature         = errors.New("webhook signature invalid or missing")

	// Infra-layer errors
	ErrLockNotAcquired = errors.New("distributed lock is held elsewhere")

	// Storage-layer errors
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrTxConflict         = errors.New("transaction conflict, retries exhausted")
)
