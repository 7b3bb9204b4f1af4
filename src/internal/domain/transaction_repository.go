package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionRepository interface {
	Create(ctx context.Context, transaction Transaction) (Transaction, error)
	ListByCard(ctx context.Context, cardID int64, limit int) ([]Transaction, error)

	// Window aggregates for limit evaluation. Both scan ledger entries
	// for the card with one of the given types and a transaction date
	// at or after since; SumAmount additionally filters on status.
	SumAmount(ctx context.Context, cardID int64, types []TransactionType, status TransferStatus, since time.Time) (decimal.Decimal, error)
	CountMatching(ctx context.Context, cardID int64, types []TransactionType, since time.Time) (int64, error)

	// PostWithdrawal debits the card and appends the SUCCESS withdrawal
	// entry in one store transaction. The card row is locked and its
	// status and balance re-checked under the lock; a re-check miss
	// surfaces as ErrCardNotActive or ErrInsufficientBalance with no
	// effect persisted.
	PostWithdrawal(ctx context.Context, cardID int64, amount decimal.Decimal, entry Transaction) (Transaction, error)

	// PostTransfer debits the source card, credits the destination and
	// appends both SUCCESS entries (TRANSFER_OUT then TRANSFER_IN) in
	// one store transaction. Card rows are locked in ascending-id order.
	PostTransfer(ctx context.Context, fromCardID, toCardID int64, amount decimal.Decimal, outEntry, inEntry Transaction) (Transaction, Transaction, error)
}
