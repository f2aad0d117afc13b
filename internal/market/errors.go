// internal/market/errors.go
package market

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidSchedule       = errors.New("invalid schedule")
	ErrIllegalState          = errors.New("illegal state")
	ErrInvalidArgument       = errors.New("invalid argument")

	// ErrConflict is returned when a versioned update lost a race.
	ErrConflict = errors.New("concurrency conflict: version mismatch")

	// ErrLedgerInvariant means a ledger operation would break
	// 0 <= available <= stock. It signals a bookkeeping bug, not bad input.
	ErrLedgerInvariant = errors.New("inventory ledger invariant violated")
)
