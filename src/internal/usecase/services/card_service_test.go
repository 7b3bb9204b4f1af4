package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ionina34/Bank-card-management-system/src/internal/adapter/http/models"
	"github.com/Ionina34/Bank-card-management-system/src/internal/adapter/repository/memory"
	"github.com/Ionina34/Bank-card-management-system/src/internal/domain"
	"github.com/Ionina34/Bank-card-management-system/src/internal/usecase/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type engineFixture struct {
	store   *memory.Store
	cards   *memory.CardRepository
	ledger  *services.TransactionService
	service *services.CardService
}

func newEngineFixture() engineFixture {
	store := memory.NewStore()
	cards := store.Cards()
	ledger := services.NewTransactionService(cards, store.Transactions())
	limits := services.NewLimitChecker(ledger)

	return engineFixture{
		store:   store,
		cards:   cards,
		ledger:  ledger,
		service: services.NewCardService(cards, ledger, limits),
	}
}

func (f engineFixture) createCard(t *testing.T, card domain.Card) domain.Card {
	t.Helper()
	if card.Status == "" {
		card.Status = domain.CardStatusActive
	}
	if card.CardHolder == "" {
		card.CardHolder = "TEST HOLDER"
	}
	if card.ExpiryDate.IsZero() {
		card.ExpiryDate = time.Now().AddDate(2, 0, 0)
	}
	created, err := f.cards.Create(context.Background(), card)
	require.NoError(t, err)
	return created
}

func (f engineFixture) entries(t *testing.T, cardID int64) []domain.Transaction {
	t.Helper()
	entries, err := f.store.Transactions().ListByCard(context.Background(), cardID, 100)
	require.NoError(t, err)
	return entries
}

func decimalPtr(value int64) *decimal.Decimal {
	d := decimal.NewFromInt(value)
	return &d
}

func int64Ptr(value int64) *int64 {
	return &value
}

func TestWithdrawSuccess(t *testing.T) {
	f := newEngineFixture()
	card := f.createCard(t, domain.Card{UserID: 1, Balance: decimal.NewFromInt(100)})

	response, err := f.service.Withdraw(context.Background(), models.WithdrawalRequest{
		CardID: card.ID,
		Amount: decimal.NewFromInt(40),
	})
	require.NoError(t, err)
	require.True(t, response.Success)
	require.NotNil(t, response.Data)
	assert.Equal(t, string(domain.TransferStatusSuccess), response.Data.Status)
	assert.NotEmpty(t, response.Data.Reference)

	updated, err := f.cards.FindByID(context.Background(), card.ID)
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(decimal.NewFromInt(60)), "balance should be debited exactly once")

	entries := f.entries(t, card.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TransactionTypeWithdrawal, entries[0].TransactionType)
	assert.Equal(t, domain.TransferStatusSuccess, entries[0].TransferStatus)
	assert.Nil(t, entries[0].CounterpartCardID)
}

func TestWithdrawCardNotFoundWritesNoEntry(t *testing.T) {
	f := newEngineFixture()

	response, err := f.service.Withdraw(context.Background(), models.WithdrawalRequest{
		CardID: 42,
		Amount: decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.False(t, response.Success)
	assert.Nil(t, response.Data)
	assert.Empty(t, f.entries(t, 42))
}

func TestWithdrawInactiveCardDeclined(t *testing.T) {
	f := newEngineFixture()
	card := f.createCard(t, domain.Card{
		UserID:  1,
		Status:  domain.CardStatusBlocked,
		Balance: decimal.NewFromInt(500),
	})

	response, err := f.service.Withdraw(context.Background(), models.WithdrawalRequest{
		CardID: card.ID,
		Amount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.NotNil(t, response.Data)
	assert.False(t, response.Success)
	assert.Equal(t, string(domain.TransferStatusDeclined), response.Data.Status)
	assert.Equal(t, "Card is not active", response.Data.Message)

	updated, err := f.cards.FindByID(context.Background(), card.ID)
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(decimal.NewFromInt(500)), "declined withdrawal must not touch the balance")

	entries := f.entries(t, card.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TransferStatusDeclined, entries[0].TransferStatus)
	assert.Equal(t, "Card is not active", entries[0].Description)
}

func TestWithdrawSingleLimitCheckedAfterBalance(t *testing.T) {
	f := newEngineFixture()
	card := f.createCard(t, domain.Card{
		UserID:                 1,
		Balance:                decimal.NewFromInt(100),
		SingleTransactionLimit: decimalPtr(50),
	})

	// Balance covers 80, so the single-transaction limit must win.
	response, err := f.service.Withdraw(context.Background(), models.WithdrawalRequest{
		CardID: card.ID,
		Amount: decimal.NewFromInt(80),
	})
	require.NoError(t, err)
	require.NotNil(t, response.Data)
	assert.Equal(t, "Amount exceeds single transaction limit", response.Data.Message)
}

func TestWithdrawInsufficientBalanceDeclined(t *testing.T) {
	f := newEngineFixture()
	card := f.createCard(t, domain.Card{UserID: 1, Balance: decimal.NewFromInt(30)})

	response, err := f.service.Withdraw(context.Background(), models.WithdrawalRequest{
		CardID: card.ID,
		Amount: decimal.NewFromInt(31),
	})
	require.NoError(t, err)
	require.NotNil(t, response.Data)
	assert.Equal(t, "Insufficient balance on source card", response.Data.Message)

	entries := f.entries(t, card.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TransferStatusDeclined, entries[0].TransferStatus)
}

// The daily window uses server-local calendar days; the assertions
// assume the test run does not straddle midnight.
func TestWithdrawDailyLimitBoundary(t *testing.T) {
	f := newEngineFixture()
	card := f.createCard(t, domain.Card{
		UserID:     1,
		Balance:    decimal.NewFromInt(1000),
		DailyLimit: decimalPtr(100),
	})

	_, err := f.ledger.Append(context.Background(), card, nil, decimal.NewFromInt(60), domain.TransactionTypeWithdrawal, domain.TransferStatusSuccess, "Withdrawal completed successfully")
	require.NoError(t, err)

	declined, err := f.service.Withdraw(context.Background(), models.WithdrawalRequest{
		CardID: card.ID,
		Amount: decimal.NewFromInt(41),
	})
	require.NoError(t, err)
	require.NotNil(t, declined.Data)
	assert.Equal(t, "Daily limit exceeded", declined.Data.Message)

	accepted, err := f.service.Withdraw(context.Background(), models.WithdrawalRequest{
		CardID: card.ID,
		Amount: decimal.NewFromInt(40),
	})
	require.NoError(t, err)
	assert.True(t, accepted.Success)
}

func TestWithdrawDailyCountLimitCountsDeclinedAttempts(t *testing.T) {
	f := newEngineFixture()
	card := f.createCard(t, domain.Card{
		UserID:                     1,
		Balance:                    decimal.NewFromInt(1000),
		DailyTransactionCountLimit: int64Ptr(2),
	})

	_, err := f.ledger.Append(context.Background(), card, nil, decimal.NewFromInt(5), domain.TransactionTypeWithdrawal, domain.TransferStatusSuccess, "Withdrawal completed successfully")
	require.NoError(t, err)
	_, err = f.ledger.Append(context.Background(), card, nil, decimal.NewFromInt(5), domain.TransactionTypeWithdrawal, domain.TransferStatusDeclined, "Daily limit exceeded")
	require.NoError(t, err)

	response, err := f.service.Withdraw(context.Background(), models.WithdrawalRequest{
		CardID: card.ID,
		Amount: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	require.NotNil(t, response.Data)
	assert.Equal(t, "Daily transaction count limit exceeded", response.Data.Message)
}

func TestTransferSuccessConservesBalance(t *testing.T) {
	f := newEngineFixture()
	source := f.createCard(t, domain.Card{UserID: 1, Balance: decimal.NewFromInt(300)})
	destination := f.createCard(t, domain.Card{UserID: 2, Balance: decimal.NewFromInt(50)})

	response, err := f.service.Transfer(context.Background(), models.TransferRequest{
		FromCardID: source.ID,
		ToCardID:   destination.ID,
		Amount:     decimal.NewFromInt(120),
	})
	require.NoError(t, err)
	require.True(t, response.Success)
	require.NotNil(t, response.Data)
	assert.Equal(t, string(domain.TransferStatusSuccess), response.Data.Status)

	updatedSource, err := f.cards.FindByID(context.Background(), source.ID)
	require.NoError(t, err)
	updatedDestination, err := f.cards.FindByID(context.Background(), destination.ID)
	require.NoError(t, err)
	assert.True(t, updatedSource.Balance.Equal(decimal.NewFromInt(180)))
	assert.True(t, updatedDestination.Balance.Equal(decimal.NewFromInt(170)))

	outEntries := f.entries(t, source.ID)
	require.Len(t, outEntries, 1)
	assert.Equal(t, domain.TransactionTypeTransferOut, outEntries[0].TransactionType)
	require.NotNil(t, outEntries[0].CounterpartCardID)
	assert.Equal(t, destination.ID, *outEntries[0].CounterpartCardID)

	inEntries := f.entries(t, destination.ID)
	require.Len(t, inEntries, 1)
	assert.Equal(t, domain.TransactionTypeTransferIn, inEntries[0].TransactionType)
	require.NotNil(t, inEntries[0].CounterpartCardID)
	assert.Equal(t, source.ID, *inEntries[0].CounterpartCardID)
}

func TestTransferSameCardDeclined(t *testing.T) {
	f := newEngineFixture()
	card := f.createCard(t, domain.Card{UserID: 1, Balance: decimal.NewFromInt(1000)})

	response, err := f.service.Transfer(context.Background(), models.TransferRequest{
		FromCardID: card.ID,
		ToCardID:   card.ID,
		Amount:     decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.NotNil(t, response.Data)
	assert.Equal(t, "Cannot transfer to the same card", response.Data.Message)

	entries := f.entries(t, card.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TransferStatusDeclined, entries[0].TransferStatus)
	require.NotNil(t, entries[0].CounterpartCardID)
	assert.Equal(t, card.ID, *entries[0].CounterpartCardID)
}

func TestTransferInactiveDestinationDeclined(t *testing.T) {
	f := newEngineFixture()
	source := f.createCard(t, domain.Card{UserID: 1, Balance: decimal.NewFromInt(100)})
	destination := f.createCard(t, domain.Card{
		UserID:  2,
		Status:  domain.CardStatusExpired,
		Balance: decimal.NewFromInt(100),
	})

	response, err := f.service.Transfer(context.Background(), models.TransferRequest{
		FromCardID: source.ID,
		ToCardID:   destination.ID,
		Amount:     decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.NotNil(t, response.Data)
	assert.Equal(t, "Both cards must be active", response.Data.Message)

	updatedSource, err := f.cards.FindByID(context.Background(), source.ID)
	require.NoError(t, err)
	assert.True(t, updatedSource.Balance.Equal(decimal.NewFromInt(100)))
	assert.Len(t, f.entries(t, source.ID), 1)
	assert.Empty(t, f.entries(t, destination.ID))
}

func TestTransferMissingDestinationWritesNoEntry(t *testing.T) {
	f := newEngineFixture()
	source := f.createCard(t, domain.Card{UserID: 1, Balance: decimal.NewFromInt(100)})

	_, err := f.service.Transfer(context.Background(), models.TransferRequest{
		FromCardID: source.ID,
		ToCardID:   source.ID + 1,
		Amount:     decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.Empty(t, f.entries(t, source.ID))
}

type failingPostRepository struct {
	domain.TransactionRepository
}

func (r failingPostRepository) PostWithdrawal(context.Context, int64, decimal.Decimal, domain.Transaction) (domain.Transaction, error) {
	return domain.Transaction{}, errors.New("connection reset")
}

func TestWithdrawPostingFailureWritesFailedEntry(t *testing.T) {
	store := memory.NewStore()
	cards := store.Cards()
	ledger := services.NewTransactionService(cards, failingPostRepository{store.Transactions()})
	limits := services.NewLimitChecker(ledger)
	service := services.NewCardService(cards, ledger, limits)

	card, err := cards.Create(context.Background(), domain.Card{
		UserID:     1,
		CardHolder: "TEST HOLDER",
		ExpiryDate: time.Now().AddDate(2, 0, 0),
		Status:     domain.CardStatusActive,
		Balance:    decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	response, err := service.Withdraw(context.Background(), models.WithdrawalRequest{
		CardID: card.ID,
		Amount: decimal.NewFromInt(10),
	})
	require.Error(t, err)
	require.NotNil(t, response.Data)
	assert.Equal(t, string(domain.TransferStatusFailed), response.Data.Status)

	entries, err := store.Transactions().ListByCard(context.Background(), card.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TransferStatusFailed, entries[0].TransferStatus)

	// The posting rolled back, so the balance is untouched.
	updated, err := cards.FindByID(context.Background(), card.ID)
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(decimal.NewFromInt(100)))
}

func TestConcurrentWithdrawalsOverdrawOnce(t *testing.T) {
	f := newEngineFixture()
	card := f.createCard(t, domain.Card{UserID: 1, Balance: decimal.NewFromInt(100)})

	responses := make([]string, 2)
	var group errgroup.Group
	for i := 0; i < 2; i++ {
		i := i
		group.Go(func() error {
			response, err := f.service.Withdraw(context.Background(), models.WithdrawalRequest{
				CardID: card.ID,
				Amount: decimal.NewFromInt(70),
			})
			if err != nil {
				return err
			}
			responses[i] = response.Data.Status
			return nil
		})
	}
	require.NoError(t, group.Wait())

	var successes, declines int
	for _, status := range responses {
		switch status {
		case string(domain.TransferStatusSuccess):
			successes++
		case string(domain.TransferStatusDeclined):
			declines++
		}
	}
	assert.Equal(t, 1, successes, "exactly one withdrawal may pass")
	assert.Equal(t, 1, declines, "the loser must decline, not fail")

	updated, err := f.cards.FindByID(context.Background(), card.ID)
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(decimal.NewFromInt(30)))

	entries := f.entries(t, card.ID)
	require.Len(t, entries, 2)
}

func TestBlockCard(t *testing.T) {
	f := newEngineFixture()
	card := f.createCard(t, domain.Card{UserID: 1, Balance: decimal.NewFromInt(10)})

	response, err := f.service.BlockCard(context.Background(), card.ID)
	require.NoError(t, err)
	require.True(t, response.Success)
	assert.Equal(t, string(domain.CardStatusBlocked), response.Data.Status)

	_, err = f.service.BlockCard(context.Background(), card.ID)
	require.Error(t, err, "blocking twice must fail")
}
