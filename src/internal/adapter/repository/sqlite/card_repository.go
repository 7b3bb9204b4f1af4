package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Ionina34/Bank-card-management-system/src/internal/domain"
	"github.com/shopspring/decimal"
)

type CardRepository struct {
	db *sql.DB
}

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) FindByID(ctx context.Context, id int64) (domain.Card, error) {
	const query = `
SELECT id, user_id, encrypted_card_number, card_holder, expiry_date, status, balance,
       daily_limit, monthly_limit, single_transaction_limit, daily_transaction_count_limit,
       created_at, updated_at
FROM cards
WHERE id = ?`

	card, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Card{}, domain.ErrRecordNotFound
		}
		return domain.Card{}, fmt.Errorf("find card: %w", err)
	}
	return card, nil
}

func (r *CardRepository) Create(ctx context.Context, card domain.Card) (domain.Card, error) {
	const query = `
INSERT INTO cards (
	user_id, encrypted_card_number, card_holder, expiry_date, status, balance,
	daily_limit, monthly_limit, single_transaction_limit, daily_transaction_count_limit,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()
	result, err := r.db.ExecContext(
		ctx,
		query,
		card.UserID,
		card.EncryptedCardNumber,
		card.CardHolder,
		card.ExpiryDate,
		card.Status,
		card.Balance.StringFixed(2),
		decimalPtrString(card.DailyLimit),
		decimalPtrString(card.MonthlyLimit),
		decimalPtrString(card.SingleTransactionLimit),
		card.DailyTransactionCountLimit,
		now,
		now,
	)
	if err != nil {
		return domain.Card{}, fmt.Errorf("create card: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Card{}, fmt.Errorf("create card id: %w", err)
	}

	card.ID = id
	card.CreatedAt = now
	card.UpdatedAt = now
	return card, nil
}

func (r *CardRepository) Save(ctx context.Context, card domain.Card) (domain.Card, error) {
	const query = `
UPDATE cards
SET status = ?,
    balance = ?,
    daily_limit = ?,
    monthly_limit = ?,
    single_transaction_limit = ?,
    daily_transaction_count_limit = ?,
    updated_at = ?
WHERE id = ?`

	now := time.Now()
	result, err := r.db.ExecContext(
		ctx,
		query,
		card.Status,
		card.Balance.StringFixed(2),
		decimalPtrString(card.DailyLimit),
		decimalPtrString(card.MonthlyLimit),
		decimalPtrString(card.SingleTransactionLimit),
		card.DailyTransactionCountLimit,
		now,
		card.ID,
	)
	if err != nil {
		return domain.Card{}, fmt.Errorf("save card: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Card{}, fmt.Errorf("save card rows affected: %w", err)
	}
	if rows == 0 {
		return domain.Card{}, domain.ErrRecordNotFound
	}

	card.UpdatedAt = now
	return card, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		card       domain.Card
		daily      decimal.NullDecimal
		monthly    decimal.NullDecimal
		single     decimal.NullDecimal
		countLimit sql.NullInt64
	)

	if err := row.Scan(
		&card.ID,
		&card.UserID,
		&card.EncryptedCardNumber,
		&card.CardHolder,
		&card.ExpiryDate,
		&card.Status,
		&card.Balance,
		&daily,
		&monthly,
		&single,
		&countLimit,
		&card.CreatedAt,
		&card.UpdatedAt,
	); err != nil {
		return domain.Card{}, err
	}

	if daily.Valid {
		value := daily.Decimal
		card.DailyLimit = &value
	}
	if monthly.Valid {
		value := monthly.Decimal
		card.MonthlyLimit = &value
	}
	if single.Valid {
		value := single.Decimal
		card.SingleTransactionLimit = &value
	}
	if countLimit.Valid {
		value := countLimit.Int64
		card.DailyTransactionCountLimit = &value
	}

	return card, nil
}

func decimalPtrString(value *decimal.Decimal) any {
	if value == nil {
		return nil
	}
	return value.StringFixed(2)
}
