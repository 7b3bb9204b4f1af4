// Package memory holds an in-process implementation of the card and
// transaction repositories. It backs unit tests and local experiments;
// one mutex serializes every operation, which makes the atomic posting
// guarantees trivial.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Ionina34/Bank-card-management-system/src/internal/domain"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu                sync.Mutex
	cards             map[int64]domain.Card
	transactions      []domain.Transaction
	nextCardID        int64
	nextTransactionID int64
}

func NewStore() *Store {
	return &Store{
		cards:             make(map[int64]domain.Card),
		nextCardID:        1,
		nextTransactionID: 1,
	}
}

func (s *Store) Cards() *CardRepository {
	return &CardRepository{store: s}
}

func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{store: s}
}

type CardRepository struct {
	store *Store
}

func (r *CardRepository) FindByID(_ context.Context, id int64) (domain.Card, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	card, ok := r.store.cards[id]
	if !ok {
		return domain.Card{}, domain.ErrRecordNotFound
	}
	return card, nil
}

func (r *CardRepository) Create(_ context.Context, card domain.Card) (domain.Card, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now()
	card.ID = r.store.nextCardID
	r.store.nextCardID++
	card.CreatedAt = now
	card.UpdatedAt = now
	r.store.cards[card.ID] = card

	return card, nil
}

func (r *CardRepository) Save(_ context.Context, card domain.Card) (domain.Card, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.cards[card.ID]; !ok {
		return domain.Card{}, domain.ErrRecordNotFound
	}
	card.UpdatedAt = time.Now()
	r.store.cards[card.ID] = card

	return card, nil
}

type TransactionRepository struct {
	store *Store
}

func (r *TransactionRepository) Create(_ context.Context, transaction domain.Transaction) (domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.append(transaction), nil
}

func (r *TransactionRepository) ListByCard(_ context.Context, cardID int64, limit int) ([]domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	out := make([]domain.Transaction, 0, limit)
	for i := len(r.store.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if r.store.transactions[i].CardID == cardID {
			out = append(out, r.store.transactions[i])
		}
	}
	return out, nil
}

func (r *TransactionRepository) SumAmount(_ context.Context, cardID int64, types []domain.TransactionType, status domain.TransferStatus, since time.Time) (decimal.Decimal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sum := decimal.Zero
	for _, transaction := range r.store.transactions {
		if transaction.CardID != cardID || transaction.TransferStatus != status {
			continue
		}
		if transaction.TransactionDate.Before(since) || !matchesType(transaction.TransactionType, types) {
			continue
		}
		sum = sum.Add(transaction.Amount)
	}
	return sum, nil
}

func (r *TransactionRepository) CountMatching(_ context.Context, cardID int64, types []domain.TransactionType, since time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for _, transaction := range r.store.transactions {
		if transaction.CardID != cardID {
			continue
		}
		if transaction.TransactionDate.Before(since) || !matchesType(transaction.TransactionType, types) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *TransactionRepository) PostWithdrawal(_ context.Context, cardID int64, amount decimal.Decimal, entry domain.Transaction) (domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	card, ok := r.store.cards[cardID]
	if !ok {
		return domain.Transaction{}, domain.ErrRecordNotFound
	}
	if card.Status != domain.CardStatusActive {
		return domain.Transaction{}, domain.ErrCardNotActive
	}
	if card.Balance.LessThan(amount) {
		return domain.Transaction{}, domain.ErrInsufficientBalance
	}

	card.Balance = card.Balance.Sub(amount)
	card.UpdatedAt = time.Now()
	r.store.cards[cardID] = card

	return r.store.append(entry), nil
}

func (r *TransactionRepository) PostTransfer(_ context.Context, fromCardID, toCardID int64, amount decimal.Decimal, outEntry, inEntry domain.Transaction) (domain.Transaction, domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	fromCard, ok := r.store.cards[fromCardID]
	if !ok {
		return domain.Transaction{}, domain.Transaction{}, domain.ErrRecordNotFound
	}
	toCard, ok := r.store.cards[toCardID]
	if !ok {
		return domain.Transaction{}, domain.Transaction{}, domain.ErrRecordNotFound
	}
	if fromCard.Status != domain.CardStatusActive || toCard.Status != domain.CardStatusActive {
		return domain.Transaction{}, domain.Transaction{}, domain.ErrCardNotActive
	}
	if fromCard.Balance.LessThan(amount) {
		return domain.Transaction{}, domain.Transaction{}, domain.ErrInsufficientBalance
	}

	now := time.Now()
	fromCard.Balance = fromCard.Balance.Sub(amount)
	fromCard.UpdatedAt = now
	toCard.Balance = toCard.Balance.Add(amount)
	toCard.UpdatedAt = now
	r.store.cards[fromCardID] = fromCard
	r.store.cards[toCardID] = toCard

	return r.store.append(outEntry), r.store.append(inEntry), nil
}

// append assumes the store mutex is held.
func (s *Store) append(transaction domain.Transaction) domain.Transaction {
	transaction.ID = s.nextTransactionID
	s.nextTransactionID++
	if transaction.TransactionDate.IsZero() {
		transaction.TransactionDate = time.Now()
	}
	s.transactions = append(s.transactions, transaction)
	return transaction
}

func matchesType(t domain.TransactionType, types []domain.TransactionType) bool {
	for _, candidate := range types {
		if t == candidate {
			return true
		}
	}
	return false
}
