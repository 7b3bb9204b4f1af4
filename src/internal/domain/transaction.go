package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferStatusSuccess  TransferStatus = "SUCCESS"
	TransferStatusFailed   TransferStatus = "FAILED"
	TransferStatusDeclined TransferStatus = "DECLINED"
)

type TransactionType string

const (
	TransactionTypeWithdrawal  TransactionType = "WITHDRAWAL"
	TransactionTypeDeposit     TransactionType = "DEPOSIT"
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
	TransactionTypeTransferIn  TransactionType = "TRANSFER_IN"
)

// Transaction is one immutable ledger entry: a single attempted
// funds-movement operation and its terminal outcome. Entries are
// append-only, never updated or deleted.
type Transaction struct {
	ID                int64
	Reference         string
	CardID            int64
	CounterpartCardID *int64
	Amount            decimal.Decimal
	TransactionType   TransactionType
	TransferStatus    TransferStatus
	TransactionDate   time.Time
	Description       string
}
