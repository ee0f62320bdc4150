package application

import "errors"

var (
	// ErrNoConfirmationResult is returned when a result event carries an
	// unexpected payload.
	ErrNoConfirmationResult = errors.New("confirmation result has unknown format")
	// ErrNoAccounts is returned by operations requiring a connected wallet
	// with at least one account.
	ErrNoAccounts = errors.New("wallet has no accounts")
)
