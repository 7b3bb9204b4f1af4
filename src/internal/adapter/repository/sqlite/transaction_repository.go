package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Ionina34/Bank-card-management-system/src/internal/domain"
	"github.com/shopspring/decimal"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *TransactionRepository) Create(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	created, err := insertTransaction(ctx, r.db, transaction)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return created, nil
}

func (r *TransactionRepository) ListByCard(ctx context.Context, cardID int64, limit int) ([]domain.Transaction, error) {
	const query = `
SELECT id, reference, card_id, counterpart_card_id, amount,
       transaction_type, transfer_status, transaction_date, description
FROM transactions
WHERE card_id = ?
ORDER BY transaction_date DESC, id DESC
LIMIT ?`

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

// SumAmount pulls the matching amounts and adds them in Go. SQLite
// would coerce the TEXT-stored decimals to floats inside SUM().
func (r *TransactionRepository) SumAmount(ctx context.Context, cardID int64, types []domain.TransactionType, status domain.TransferStatus, since time.Time) (decimal.Decimal, error) {
	query := `
SELECT amount
FROM transactions
WHERE card_id = ?
  AND transfer_status = ?
  AND transaction_date >= ?
  AND transaction_type IN (` + placeholders(len(types)) + `)`

	args := []any{cardID, status, since}
	for _, t := range types {
		args = append(args, string(t))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum transaction amounts: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("scan transaction amount: %w", err)
		}
		sum = sum.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("sum transaction amounts: %w", err)
	}

	return sum, nil
}

func (r *TransactionRepository) CountMatching(ctx context.Context, cardID int64, types []domain.TransactionType, since time.Time) (int64, error) {
	query := `
SELECT COUNT(*)
FROM transactions
WHERE card_id = ?
  AND transaction_date >= ?
  AND transaction_type IN (` + placeholders(len(types)) + `)`

	args := []any{cardID, since}
	for _, t := range types {
		args = append(args, string(t))
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepository) PostWithdrawal(ctx context.Context, cardID int64, amount decimal.Decimal, entry domain.Transaction) (domain.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("begin withdrawal transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var balance decimal.Decimal
	if balance, err = checkCard(ctx, tx, cardID, amount); err != nil {
		return domain.Transaction{}, err
	}

	if err = setBalance(ctx, tx, cardID, balance.Sub(amount)); err != nil {
		return domain.Transaction{}, err
	}

	var created domain.Transaction
	if created, err = insertTransaction(ctx, tx, entry); err != nil {
		return domain.Transaction{}, fmt.Errorf("append withdrawal entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.Transaction{}, fmt.Errorf("commit withdrawal transaction: %w", err)
	}
	return created, nil
}

func (r *TransactionRepository) PostTransfer(ctx context.Context, fromCardID, toCardID int64, amount decimal.Decimal, outEntry, inEntry domain.Transaction) (domain.Transaction, domain.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, domain.Transaction{}, fmt.Errorf("begin transfer transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var fromBalance, toBalance decimal.Decimal
	if fromBalance, err = checkCard(ctx, tx, fromCardID, amount); err != nil {
		return domain.Transaction{}, domain.Transaction{}, err
	}
	if toBalance, err = checkCard(ctx, tx, toCardID, decimal.Zero); err != nil {
		return domain.Transaction{}, domain.Transaction{}, err
	}

	if err = setBalance(ctx, tx, fromCardID, fromBalance.Sub(amount)); err != nil {
		return domain.Transaction{}, domain.Transaction{}, err
	}
	if err = setBalance(ctx, tx, toCardID, toBalance.Add(amount)); err != nil {
		return domain.Transaction{}, domain.Transaction{}, err
	}

	var createdOut, createdIn domain.Transaction
	if createdOut, err = insertTransaction(ctx, tx, outEntry); err != nil {
		return domain.Transaction{}, domain.Transaction{}, fmt.Errorf("append transfer out entry: %w", err)
	}
	if createdIn, err = insertTransaction(ctx, tx, inEntry); err != nil {
		return domain.Transaction{}, domain.Transaction{}, fmt.Errorf("append transfer in entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.Transaction{}, domain.Transaction{}, fmt.Errorf("commit transfer transaction: %w", err)
	}
	return createdOut, createdIn, nil
}

// checkCard re-validates status and balance inside the write
// transaction. SQLite holds the database write lock for the whole
// transaction, so no further row locking is needed.
func checkCard(ctx context.Context, tx *sql.Tx, cardID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `SELECT status, balance FROM cards WHERE id = ?`

	var (
		status  domain.CardStatus
		balance decimal.Decimal
	)
	if err := tx.QueryRowContext(ctx, query, cardID).Scan(&status, &balance); err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, domain.ErrRecordNotFound
		}
		return decimal.Zero, fmt.Errorf("check card: %w", err)
	}

	if status != domain.CardStatusActive {
		return decimal.Zero, domain.ErrCardNotActive
	}
	if amount.IsPositive() && balance.LessThan(amount) {
		return decimal.Zero, domain.ErrInsufficientBalance
	}

	return balance, nil
}

func setBalance(ctx context.Context, tx *sql.Tx, cardID int64, balance decimal.Decimal) error {
	const query = `UPDATE cards SET balance = ?, updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query, balance.StringFixed(2), time.Now(), cardID); err != nil {
		return fmt.Errorf("update card balance: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, runner execer, transaction domain.Transaction) (domain.Transaction, error) {
	const query = `
INSERT INTO transactions (
	reference, card_id, counterpart_card_id, amount,
	transaction_type, transfer_status, transaction_date, description
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if transaction.TransactionDate.IsZero() {
		transaction.TransactionDate = time.Now()
	}

	result, err := runner.ExecContext(
		ctx,
		query,
		transaction.Reference,
		transaction.CardID,
		transaction.CounterpartCardID,
		transaction.Amount.StringFixed(2),
		transaction.TransactionType,
		transaction.TransferStatus,
		transaction.TransactionDate,
		transaction.Description,
	)
	if err != nil {
		return domain.Transaction{}, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Transaction{}, err
	}

	transaction.ID = id
	return transaction, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
