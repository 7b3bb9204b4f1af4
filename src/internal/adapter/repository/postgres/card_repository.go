package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Ionina34/Bank-card-management-system/src/internal/domain"
	"github.com/Ionina34/Bank-card-management-system/src/internal/logger"
	"github.com/shopspring/decimal"
)

type CardRepository struct {
	db *sql.DB
}

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

const cardColumns = `id,
       user_id,
       encrypted_card_number,
       card_holder,
       expiry_date,
       status,
       balance,
       daily_limit,
       monthly_limit,
       single_transaction_limit,
       daily_transaction_count_limit,
       created_at,
       updated_at`

func (r *CardRepository) FindByID(ctx context.Context, id int64) (domain.Card, error) {
	const query = `
SELECT ` + cardColumns + `
FROM cards
WHERE id = $1`

	card, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Card{}, domain.ErrRecordNotFound
		}
		logger.Error("card repository find failed", err, logger.Fields{
			"cardId": id,
		})
		return domain.Card{}, fmt.Errorf("find card: %w", err)
	}

	return card, nil
}

func (r *CardRepository) Create(ctx context.Context, card domain.Card) (domain.Card, error) {
	const query = `
INSERT INTO cards (
	user_id,
	encrypted_card_number,
	card_holder,
	expiry_date,
	status,
	balance,
	daily_limit,
	monthly_limit,
	single_transaction_limit,
	daily_transaction_count_limit
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at, updated_at`

	var (
		id        int64
		createdAt time.Time
		updatedAt time.Time
	)

	if err := r.db.QueryRowContext(
		ctx,
		query,
		card.UserID,
		card.EncryptedCardNumber,
		card.CardHolder,
		card.ExpiryDate,
		card.Status,
		card.Balance,
		card.DailyLimit,
		card.MonthlyLimit,
		card.SingleTransactionLimit,
		card.DailyTransactionCountLimit,
	).Scan(&id, &createdAt, &updatedAt); err != nil {
		logger.Error("card repository create failed", err, logger.Fields{
			"userId": card.UserID,
		})
		return domain.Card{}, fmt.Errorf("create card: %w", err)
	}

	card.ID = id
	card.CreatedAt = createdAt
	card.UpdatedAt = updatedAt

	logger.Info("card repository create success", logger.Fields{
		"cardId": card.ID,
		"userId": card.UserID,
	})

	return card, nil
}

func (r *CardRepository) Save(ctx context.Context, card domain.Card) (domain.Card, error) {
	const query = `
UPDATE cards
SET status = $2,
    balance = $3,
    daily_limit = $4,
    monthly_limit = $5,
    single_transaction_limit = $6,
    daily_transaction_count_limit = $7,
    updated_at = NOW()
WHERE id = $1
RETURNING updated_at`

	var updatedAt time.Time
	if err := r.db.QueryRowContext(
		ctx,
		query,
		card.ID,
		card.Status,
		card.Balance,
		card.DailyLimit,
		card.MonthlyLimit,
		card.SingleTransactionLimit,
		card.DailyTransactionCountLimit,
	).Scan(&updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.Card{}, domain.ErrRecordNotFound
		}
		logger.Error("card repository save failed", err, logger.Fields{
			"cardId": card.ID,
		})
		return domain.Card{}, fmt.Errorf("save card: %w", err)
	}

	card.UpdatedAt = updatedAt
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
