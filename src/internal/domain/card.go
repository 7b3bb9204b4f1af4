package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

type Card struct {
	ID                  int64
	UserID              int64
	EncryptedCardNumber string
	CardHolder          string
	ExpiryDate          time.Time
	Status              CardStatus
	Balance             decimal.Decimal

	DailyLimit                 *decimal.Decimal
	MonthlyLimit               *decimal.Decimal
	SingleTransactionLimit     *decimal.Decimal
	DailyTransactionCountLimit *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
