package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Ionina34/Bank-card-management-system/src/internal/domain"
	"github.com/Ionina34/Bank-card-management-system/src/internal/logger"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *TransactionRepository) Create(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	created, err := insertTransaction(ctx, r.db, transaction)
	if err != nil {
		logger.Error("transaction repository create failed", err, logger.Fields{
			"cardId":    transaction.CardID,
			"reference": transaction.Reference,
		})
		return domain.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	return created, nil
}

func (r *TransactionRepository) ListByCard(ctx context.Context, cardID int64, limit int) ([]domain.Transaction, error) {
	const query = `
SELECT id,
       reference,
       card_id,
       counterpart_card_id,
       amount,
       transaction_type,
       transfer_status,
       transaction_date,
       description
FROM transactions
WHERE card_id = $1
ORDER BY transaction_date DESC, id DESC
LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, cardID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		var (
			transaction domain.Transaction
			counterpart sql.NullInt64
			description sql.NullString
		)
		if err := rows.Scan(
			&transaction.ID,
			&transaction.Reference,
			&transaction.CardID,
			&counterpart,
			&transaction.Amount,
			&transaction.TransactionType,
			&transaction.TransferStatus,
			&transaction.TransactionDate,
			&description,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if counterpart.Valid {
			value := counterpart.Int64
			transaction.CounterpartCardID = &value
		}
		transaction.Description = description.String
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return transactions, nil
}

func (r *TransactionRepository) SumAmount(ctx context.Context, cardID int64, types []domain.TransactionType, status domain.TransferStatus, since time.Time) (decimal.Decimal, error) {
	const query = `
SELECT COALESCE(SUM(amount), 0)
FROM transactions
WHERE card_id = $1
  AND transaction_type = ANY($2)
  AND transfer_status = $3
  AND transaction_date >= $4`

	var sum decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, cardID, pq.Array(typeStrings(types)), status, since).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum transaction amounts: %w", err)
	}

	return sum, nil
}

func (r *TransactionRepository) CountMatching(ctx context.Context, cardID int64, types []domain.TransactionType, since time.Time) (int64, error) {
	const query = `
SELECT COUNT(*)
FROM transactions
WHERE card_id = $1
  AND transaction_type = ANY($2)
  AND transaction_date >= $3`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, cardID, pq.Array(typeStrings(types)), since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}

	return count, nil
}

func (r *TransactionRepository) PostWithdrawal(ctx context.Context, cardID int64, amount decimal.Decimal, entry domain.Transaction) (domain.Transaction, error) {
	logger.Info("transaction repository post withdrawal", logger.Fields{
		"cardId": cardID,
		"amount": amount,
	})

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("transaction repository begin tx failed", err, nil)
		return domain.Transaction{}, fmt.Errorf("begin withdrawal transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockAndCheckCard(ctx, tx, cardID, amount); err != nil {
		return domain.Transaction{}, err
	}

	const debitQuery = `
UPDATE cards
SET balance = balance - $2,
    updated_at = NOW()
WHERE id = $1`
	if _, err = tx.ExecContext(ctx, debitQuery, cardID, amount); err != nil {
		return domain.Transaction{}, fmt.Errorf("debit card: %w", err)
	}

	var created domain.Transaction
	if created, err = insertTransaction(ctx, tx, entry); err != nil {
		return domain.Transaction{}, fmt.Errorf("append withdrawal entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		logger.Error("transaction repository commit tx failed", err, nil)
		return domain.Transaction{}, fmt.Errorf("commit withdrawal transaction: %w", err)
	}

	return created, nil
}

func (r *TransactionRepository) PostTransfer(ctx context.Context, fromCardID, toCardID int64, amount decimal.Decimal, outEntry, inEntry domain.Transaction) (domain.Transaction, domain.Transaction, error) {
	logger.Info("transaction repository post transfer", logger.Fields{
		"fromCardId": fromCardID,
		"toCardId":   toCardID,
		"amount":     amount,
	})

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("transaction repository begin tx failed", err, nil)
		return domain.Transaction{}, domain.Transaction{}, fmt.Errorf("begin transfer transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Lock both rows in ascending-id order so two opposite transfers
	// over the same card pair cannot deadlock.
	first, second := fromCardID, toCardID
	if second < first {
		first, second = second, first
	}
	for _, id := range []int64{first, second} {
		checkAmount := decimal.Zero
		if id == fromCardID {
			checkAmount = amount
		}
		if err = lockAndCheckCard(ctx, tx, id, checkAmount); err != nil {
			return domain.Transaction{}, domain.Transaction{}, err
		}
	}

	const debitQuery = `
UPDATE cards
SET balance = balance - $2,
    updated_at = NOW()
WHERE id = $1`
	if _, err = tx.ExecContext(ctx, debitQuery, fromCardID, amount); err != nil {
		return domain.Transaction{}, domain.Transaction{}, fmt.Errorf("debit source card: %w", err)
	}

	const creditQuery = `
UPDATE cards
SET balance = balance + $2,
    updated_at = NOW()
WHERE id = $1`
	if _, err = tx.ExecContext(ctx, creditQuery, toCardID, amount); err != nil {
		return domain.Transaction{}, domain.Transaction{}, fmt.Errorf("credit destination card: %w", err)
	}

	var createdOut, createdIn domain.Transaction
	if createdOut, err = insertTransaction(ctx, tx, outEntry); err != nil {
		return domain.Transaction{}, domain.Transaction{}, fmt.Errorf("append transfer out entry: %w", err)
	}
	if createdIn, err = insertTransaction(ctx, tx, inEntry); err != nil {
		return domain.Transaction{}, domain.Transaction{}, fmt.Errorf("append transfer in entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		logger.Error("transaction repository commit tx failed", err, nil)
		return domain.Transaction{}, domain.Transaction{}, fmt.Errorf("commit transfer transaction: %w", err)
	}

	return createdOut, createdIn, nil
}

// lockAndCheckCard takes the row lock and re-validates status and, when
// amount is positive, the balance. The pre-checks ran against a
// possibly stale read; this is the authoritative one.
func lockAndCheckCard(ctx context.Context, tx *sql.Tx, cardID int64, amount decimal.Decimal) error {
	const query = `
SELECT status, balance
FROM cards
WHERE id = $1
FOR UPDATE`

	var (
		status  domain.CardStatus
		balance decimal.Decimal
	)
	if err := tx.QueryRowContext(ctx, query, cardID).Scan(&status, &balance); err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrRecordNotFound
		}
		return fmt.Errorf("lock card: %w", err)
	}

	if status != domain.CardStatusActive {
		return domain.ErrCardNotActive
	}
	if amount.IsPositive() && balance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}

	return nil
}

func insertTransaction(ctx context.Context, runner execer, transaction domain.Transaction) (domain.Transaction, error) {
	const query = `
INSERT INTO transactions (
	reference,
	card_id,
	counterpart_card_id,
	amount,
	transaction_type,
	transfer_status,
	transaction_date,
	description
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, transaction_date`

	if transaction.TransactionDate.IsZero() {
		transaction.TransactionDate = time.Now()
	}

	if err := runner.QueryRowContext(
		ctx,
		query,
		transaction.Reference,
		transaction.CardID,
		transaction.CounterpartCardID,
		transaction.Amount,
		transaction.TransactionType,
		transaction.TransferStatus,
		transaction.TransactionDate,
		transaction.Description,
	).Scan(&transaction.ID, &transaction.TransactionDate); err != nil {
		return domain.Transaction{}, err
	}

	return transaction, nil
}

func typeStrings(types []domain.TransactionType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}
