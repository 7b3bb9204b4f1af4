package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalRequest struct {
	CardID int64           `json:"cardId"`
	Amount decimal.Decimal `json:"amount"`
}

func (r WithdrawalRequest) Validate() error {
	var errs []string

	if r.CardID <= 0 {
		errs = append(errs, "cardId must be a positive identifier")
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		errs = append(errs, "amount must be greater than zero")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type WithdrawalResponse struct {
	CardID    int64           `json:"cardId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Reference string          `json:"reference,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
