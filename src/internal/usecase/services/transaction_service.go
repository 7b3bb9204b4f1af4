package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ionina34/Bank-card-management-system/src/internal/adapter/http/models"
	"github.com/Ionina34/Bank-card-management-system/src/internal/commons"
	"github.com/Ionina34/Bank-card-management-system/src/internal/domain"
	"github.com/Ionina34/Bank-card-management-system/src/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger descriptions are bounded; longer reason strings are truncated
// rather than rejected.
const maxDescriptionLength = 64

const defaultHistoryLimit = 20

// debitTypes are the transaction types that count against spending
// limits.
var debitTypes = []domain.TransactionType{
	domain.TransactionTypeWithdrawal,
	domain.TransactionTypeTransferOut,
}

// TransactionService is the ledger writer: every attempted funds
// movement ends up here as exactly one append (two for a successful
// transfer). It also owns the read path the limit checker aggregates
// over.
type TransactionService struct {
	cardRepo        domain.CardRepository
	transactionRepo domain.TransactionRepository
}

func NewTransactionService(cardRepo domain.CardRepository, transactionRepo domain.TransactionRepository) *TransactionService {
	return &TransactionService{
		cardRepo:        cardRepo,
		transactionRepo: transactionRepo,
	}
}

// Append records one ledger entry for an attempted operation. The
// counterpart card is nil for withdrawals.
func (s *TransactionService) Append(ctx context.Context, card domain.Card, counterpart *domain.Card, amount decimal.Decimal, transactionType domain.TransactionType, status domain.TransferStatus, message string) (domain.Transaction, error) {
	entry := domain.Transaction{
		Reference:       uuid.NewString(),
		CardID:          card.ID,
		Amount:          amount,
		TransactionType: transactionType,
		TransferStatus:  status,
		TransactionDate: time.Now(),
		Description:     truncateDescription(message),
	}
	if counterpart != nil {
		counterpartID := counterpart.ID
		entry.CounterpartCardID = &counterpartID
	}

	created, err := s.transactionRepo.Create(ctx, entry)
	if err != nil {
		logger.Error("transaction service append failed", err, logger.Fields{
			"cardId": card.ID,
			"type":   transactionType,
			"status": status,
		})
		return domain.Transaction{}, err
	}

	return created, nil
}

// PostWithdrawal debits the card and appends the SUCCESS entry as one
// atomic unit of work.
func (s *TransactionService) PostWithdrawal(ctx context.Context, card domain.Card, amount decimal.Decimal, message string) (domain.Transaction, error) {
	entry := domain.Transaction{
		Reference:       uuid.NewString(),
		CardID:          card.ID,
		Amount:          amount,
		TransactionType: domain.TransactionTypeWithdrawal,
		TransferStatus:  domain.TransferStatusSuccess,
		TransactionDate: time.Now(),
		Description:     truncateDescription(message),
	}

	return s.transactionRepo.PostWithdrawal(ctx, card.ID, amount, entry)
}

// PostTransfer moves the amount between both cards and appends the
// TRANSFER_OUT/TRANSFER_IN pair, all in one atomic unit of work. Both
// entries share a reference and point at each other's card.
func (s *TransactionService) PostTransfer(ctx context.Context, fromCard, toCard domain.Card, amount decimal.Decimal, outMessage, inMessage string) (domain.Transaction, domain.Transaction, error) {
	reference := uuid.NewString()
	now := time.Now()
	fromID := fromCard.ID
	toID := toCard.ID

	outEntry := domain.Transaction{
		Reference:         reference + "-out",
		CardID:            fromID,
		CounterpartCardID: &toID,
		Amount:            amount,
		TransactionType:   domain.TransactionTypeTransferOut,
		TransferStatus:    domain.TransferStatusSuccess,
		TransactionDate:   now,
		Description:       truncateDescription(outMessage),
	}
	inEntry := domain.Transaction{
		Reference:         reference + "-in",
		CardID:            toID,
		CounterpartCardID: &fromID,
		Amount:            amount,
		TransactionType:   domain.TransactionTypeTransferIn,
		TransferStatus:    domain.TransferStatusSuccess,
		TransactionDate:   now,
		Description:       truncateDescription(inMessage),
	}

	return s.transactionRepo.PostTransfer(ctx, fromID, toID, amount, outEntry, inEntry)
}

// SpentSince sums successful debit-type entries for the card from the
// given instant. In-flight attempts have no entry yet and are not
// counted.
func (s *TransactionService) SpentSince(ctx context.Context, cardID int64, since time.Time) (decimal.Decimal, error) {
	return s.transactionRepo.SumAmount(ctx, cardID, debitTypes, domain.TransferStatusSuccess, since)
}

// CountSince counts debit-type entries of any status for the card from
// the given instant. Declined and failed attempts count too.
func (s *TransactionService) CountSince(ctx context.Context, cardID int64, since time.Time) (int64, error) {
	return s.transactionRepo.CountMatching(ctx, cardID, debitTypes, since)
}

func (s *TransactionService) GetCardTransactions(ctx context.Context, cardID int64, limit int) (commons.Response[[]models.TransactionResponse], error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	if _, err := s.cardRepo.FindByID(ctx, cardID); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return commons.ErrorResponse[[]models.TransactionResponse]("Card not found"), err
		}
		return commons.ErrorResponse[[]models.TransactionResponse]("failed to load transactions", "Unable to load transactions right now"), err
	}

	transactions, err := s.transactionRepo.ListByCard(ctx, cardID, limit)
	if err != nil {
		return commons.ErrorResponse[[]models.TransactionResponse]("failed to load transactions", "Unable to load transactions right now"), err
	}

	responses := make([]models.TransactionResponse, 0, len(transactions))
	for _, transaction := range transactions {
		responses = append(responses, mapTransactionToResponse(transaction))
	}

	return commons.SuccessResponse(fmt.Sprintf("%d transactions", len(responses)), responses), nil
}

func mapTransactionToResponse(transaction domain.Transaction) models.TransactionResponse {
	return models.TransactionResponse{
		ID:                transaction.ID,
		Reference:         transaction.Reference,
		CardID:            transaction.CardID,
		CounterpartCardID: transaction.CounterpartCardID,
		Amount:            transaction.Amount,
		TransactionType:   string(transaction.TransactionType),
		TransferStatus:    string(transaction.TransferStatus),
		TransactionDate:   transaction.TransactionDate,
		Description:       transaction.Description,
	}
}

func truncateDescription(message string) string {
	if len(message) <= maxDescriptionLength {
		return message
	}
	return message[:maxDescriptionLength]
}
