package services

import (
	"context"
	"time"

	"github.com/Ionina34/Bank-card-management-system/src/internal/domain"
	"github.com/shopspring/decimal"
)

// LimitChecker evaluates a proposed debit against the card's balance
// and configured limits. Checks run in a fixed order and the first
// violation wins. Window boundaries are calendar day and calendar
// month in server-local time.
type LimitChecker struct {
	ledger *TransactionService

	// now is replaceable in tests to pin window boundaries.
	now func() time.Time
}

func NewLimitChecker(ledger *TransactionService) *LimitChecker {
	return &LimitChecker{
		ledger: ledger,
		now:    time.Now,
	}
}

// Check returns nil when the proposed amount is permitted, a
// *domain.LimitViolationError on a business-rule violation, and any
// other error when the ledger read path fails.
func (c *LimitChecker) Check(ctx context.Context, card domain.Card, amount decimal.Decimal) error {
	if card.Balance.LessThan(amount) {
		return &domain.LimitViolationError{Reason: "Insufficient balance on source card"}
	}

	if card.SingleTransactionLimit != nil && amount.GreaterThan(*card.SingleTransactionLimit) {
		return &domain.LimitViolationError{Reason: "Amount exceeds single transaction limit"}
	}

	now := c.now()

	if card.DailyLimit != nil {
		spent, err := c.ledger.SpentSince(ctx, card.ID, startOfDay(now))
		if err != nil {
			return err
		}
		if spent.Add(amount).GreaterThan(*card.DailyLimit) {
			return &domain.LimitViolationError{Reason: "Daily limit exceeded"}
		}
	}

	if card.MonthlyLimit != nil {
		spent, err := c.ledger.SpentSince(ctx, card.ID, startOfMonth(now))
		if err != nil {
			return err
		}
		if spent.Add(amount).GreaterThan(*card.MonthlyLimit) {
			return &domain.LimitViolationError{Reason: "Monthly limit exceeded"}
		}
	}

	if card.DailyTransactionCountLimit != nil {
		count, err := c.ledger.CountSince(ctx, card.ID, startOfDay(now))
		if err != nil {
			return err
		}
		if count >= *card.DailyTransactionCountLimit {
			return &domain.LimitViolationError{Reason: "Daily transaction count limit exceeded"}
		}
	}

	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
