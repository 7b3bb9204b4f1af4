package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransferRequest struct {
	FromCardID int64           `json:"fromCardId"`
	ToCardID   int64           `json:"toCardId"`
	Amount     decimal.Decimal `json:"amount"`
}

// Validate covers malformed input only. A transfer to the same card is
// a well-formed request that the engine declines with a ledger entry.
func (r TransferRequest) Validate() error {
	var errs []string

	if r.FromCardID <= 0 {
		errs = append(errs, "fromCardId must be a positive identifier")
	}
	if r.ToCardID <= 0 {
		errs = append(errs, "toCardId must be a positive identifier")
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		errs = append(errs, "amount must be greater than zero")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type TransferResponse struct {
	FromCardID int64           `json:"fromCardId"`
	ToCardID   int64           `json:"toCardId"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Reference  string          `json:"reference,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
