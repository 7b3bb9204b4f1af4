package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionResponse struct {
	ID                int64           `json:"id"`
	Reference         string          `json:"reference"`
	CardID            int64           `json:"cardId"`
	CounterpartCardID *int64          `json:"counterpartCardId,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionType   string          `json:"transactionType"`
	TransferStatus    string          `json:"transferStatus"`
	TransactionDate   time.Time       `json:"transactionDate"`
	Description       string          `json:"description"`
}
