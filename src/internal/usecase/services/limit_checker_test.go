package services

import (
	"context"
	"testing"
	"time"

	"github.com/Ionina34/Bank-card-management-system/src/internal/adapter/repository/memory"
	"github.com/Ionina34/Bank-card-management-system/src/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPinnedChecker(t *testing.T, now time.Time) (*LimitChecker, *memory.Store, domain.Card) {
	t.Helper()

	store := memory.NewStore()
	ledger := NewTransactionService(store.Cards(), store.Transactions())
	checker := NewLimitChecker(ledger)
	checker.now = func() time.Time { return now }

	card, err := store.Cards().Create(context.Background(), domain.Card{
		UserID:     1,
		CardHolder: "TEST HOLDER",
		ExpiryDate: now.AddDate(2, 0, 0),
		Status:     domain.CardStatusActive,
		Balance:    decimal.NewFromInt(10000),
	})
	require.NoError(t, err)

	return checker, store, card
}

func insertEntry(t *testing.T, store *memory.Store, cardID int64, amount int64, transactionType domain.TransactionType, status domain.TransferStatus, date time.Time) {
	t.Helper()
	_, err := store.Transactions().Create(context.Background(), domain.Transaction{
		Reference:       date.Format(time.RFC3339Nano),
		CardID:          cardID,
		Amount:          decimal.NewFromInt(amount),
		TransactionType: transactionType,
		TransferStatus:  status,
		TransactionDate: date,
	})
	require.NoError(t, err)
}

func violationReason(t *testing.T, err error) string {
	t.Helper()
	violation, ok := err.(*domain.LimitViolationError)
	require.True(t, ok, "expected a limit violation, got %v", err)
	return violation.Reason
}

func TestCheckBalanceBeforeLimits(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	checker, _, card := newPinnedChecker(t, now)

	limit := decimal.NewFromInt(1)
	card.Balance = decimal.NewFromInt(5)
	card.SingleTransactionLimit = &limit

	err := checker.Check(context.Background(), card, decimal.NewFromInt(10))
	assert.Equal(t, "Insufficient balance on source card", violationReason(t, err))
}

func TestCheckSingleTransactionLimit(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	checker, _, card := newPinnedChecker(t, now)

	limit := decimal.NewFromInt(100)
	card.SingleTransactionLimit = &limit

	err := checker.Check(context.Background(), card, decimal.NewFromInt(101))
	assert.Equal(t, "Amount exceeds single transaction limit", violationReason(t, err))

	assert.NoError(t, checker.Check(context.Background(), card, decimal.NewFromInt(100)))
}

func TestCheckDailyLimitWindow(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	checker, store, card := newPinnedChecker(t, now)

	limit := decimal.NewFromInt(100)
	card.DailyLimit = &limit

	// Yesterday's spend is outside the window.
	insertEntry(t, store, card.ID, 90, domain.TransactionTypeWithdrawal, domain.TransferStatusSuccess, now.AddDate(0, 0, -1))
	assert.NoError(t, checker.Check(context.Background(), card, decimal.NewFromInt(100)))

	insertEntry(t, store, card.ID, 60, domain.TransactionTypeTransferOut, domain.TransferStatusSuccess, now.Add(-time.Hour))
	assert.NoError(t, checker.Check(context.Background(), card, decimal.NewFromInt(40)))

	err := checker.Check(context.Background(), card, decimal.NewFromInt(41))
	assert.Equal(t, "Daily limit exceeded", violationReason(t, err))
}

func TestCheckDailyLimitIgnoresNonDebits(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	checker, store, card := newPinnedChecker(t, now)

	limit := decimal.NewFromInt(50)
	card.DailyLimit = &limit

	insertEntry(t, store, card.ID, 500, domain.TransactionTypeDeposit, domain.TransferStatusSuccess, now.Add(-time.Hour))
	insertEntry(t, store, card.ID, 500, domain.TransactionTypeTransferIn, domain.TransferStatusSuccess, now.Add(-time.Hour))
	insertEntry(t, store, card.ID, 500, domain.TransactionTypeWithdrawal, domain.TransferStatusDeclined, now.Add(-time.Hour))

	assert.NoError(t, checker.Check(context.Background(), card, decimal.NewFromInt(50)))
}

func TestCheckMonthlyLimitWindow(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	checker, store, card := newPinnedChecker(t, now)

	limit := decimal.NewFromInt(1000)
	card.MonthlyLimit = &limit

	// February is outside the window, March 1st is inside.
	insertEntry(t, store, card.ID, 900, domain.TransactionTypeWithdrawal, domain.TransferStatusSuccess, time.Date(2025, time.February, 28, 23, 0, 0, 0, time.UTC))
	insertEntry(t, store, card.ID, 700, domain.TransactionTypeWithdrawal, domain.TransferStatusSuccess, time.Date(2025, time.March, 1, 0, 30, 0, 0, time.UTC))

	assert.NoError(t, checker.Check(context.Background(), card, decimal.NewFromInt(300)))

	err := checker.Check(context.Background(), card, decimal.NewFromInt(301))
	assert.Equal(t, "Monthly limit exceeded", violationReason(t, err))
}

func TestCheckDailyCountLimitCountsAnyStatus(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	checker, store, card := newPinnedChecker(t, now)

	countLimit := int64(3)
	card.DailyTransactionCountLimit = &countLimit

	insertEntry(t, store, card.ID, 10, domain.TransactionTypeWithdrawal, domain.TransferStatusSuccess, now.Add(-3*time.Hour))
	insertEntry(t, store, card.ID, 10, domain.TransactionTypeTransferOut, domain.TransferStatusDeclined, now.Add(-2*time.Hour))
	assert.NoError(t, checker.Check(context.Background(), card, decimal.NewFromInt(10)))

	insertEntry(t, store, card.ID, 10, domain.TransactionTypeWithdrawal, domain.TransferStatusFailed, now.Add(-time.Hour))
	err := checker.Check(context.Background(), card, decimal.NewFromInt(10))
	assert.Equal(t, "Daily transaction count limit exceeded", violationReason(t, err))
}

func TestCheckOrderDailyBeforeMonthly(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	checker, store, card := newPinnedChecker(t, now)

	dailyLimit := decimal.NewFromInt(50)
	monthlyLimit := decimal.NewFromInt(50)
	card.DailyLimit = &dailyLimit
	card.MonthlyLimit = &monthlyLimit

	insertEntry(t, store, card.ID, 40, domain.TransactionTypeWithdrawal, domain.TransferStatusSuccess, now.Add(-time.Hour))

	// Both windows are exceeded; daily is checked first.
	err := checker.Check(context.Background(), card, decimal.NewFromInt(20))
	assert.Equal(t, "Daily limit exceeded", violationReason(t, err))
}

func TestCheckNilLimitsPermitEverything(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	checker, store, card := newPinnedChecker(t, now)

	insertEntry(t, store, card.ID, 9000, domain.TransactionTypeWithdrawal, domain.TransferStatusSuccess, now.Add(-time.Hour))

	assert.NoError(t, checker.Check(context.Background(), card, decimal.NewFromInt(10000)))
}
