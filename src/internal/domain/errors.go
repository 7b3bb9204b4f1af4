package domain

import "errors"

var ErrRecordNotFound = errors.New("Record not found")
var ErrInsufficientBalance = errors.New("Insufficient balance on source card")
var ErrCardNotActive = errors.New("Card is not active")

// LimitViolationError is a business-rule decline from the limit
// checker. The reason string goes verbatim into the declined ledger
// entry and the outcome returned to the caller.
type LimitViolationError struct {
	Reason string
}

func (e *LimitViolationError) Error() string {
	return e.Reason
}
