package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CardResponse struct {
	ID         int64           `json:"id"`
	CardHolder string          `json:"cardHolder"`
	ExpiryDate time.Time       `json:"expiryDate"`
	Status     string          `json:"status"`
	Balance    decimal.Decimal `json:"balance"`
}
