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
)

const messageCardNotActive = "Card is not active"
const messageBothCardsActive = "Both cards must be active"
const messageSameCardTransfer = "Cannot transfer to the same card"
const messageWithdrawalSuccess = "Withdrawal completed successfully"
const messageTransferOut = "Transfer between accounts"
const messageTransferIn = "Replenishment from another account"
const messageInternalError = "Internal server error"

// CardService is the funds movement engine. Every attempted withdrawal
// or transfer terminates in exactly one of four states: declined
// before any mutation, declined after a race re-check, success, or
// failed; all but the card-not-found case leave a ledger entry behind
// before control returns to the caller.
type CardService struct {
	cardRepo domain.CardRepository
	ledger   *TransactionService
	limits   *LimitChecker
}

func NewCardService(cardRepo domain.CardRepository, ledger *TransactionService, limits *LimitChecker) *CardService {
	return &CardService{
		cardRepo: cardRepo,
		ledger:   ledger,
		limits:   limits,
	}
}

func (s *CardService) Withdraw(ctx context.Context, req models.WithdrawalRequest) (commons.Response[models.WithdrawalResponse], error) {
	logger.Info("card service withdrawal request", logger.Fields{
		"payload": logger.SanitizePayload(req),
	})

	if err := req.Validate(); err != nil {
		return commons.ErrorResponse[models.WithdrawalResponse]("validation failed", err.Error()), err
	}

	card, err := s.cardRepo.FindByID(ctx, req.CardID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return commons.ErrorResponse[models.WithdrawalResponse]("Card not found"), err
		}
		return commons.ErrorResponse[models.WithdrawalResponse]("failed to process withdrawal", "Unable to process withdrawal right now"), err
	}

	response := models.WithdrawalResponse{
		CardID:    card.ID,
		Amount:    req.Amount,
		Timestamp: time.Now(),
	}

	if card.Status != domain.CardStatusActive {
		return s.declineWithdrawal(ctx, card, response, messageCardNotActive)
	}

	if err := s.limits.Check(ctx, card, req.Amount); err != nil {
		var violation *domain.LimitViolationError
		if errors.As(err, &violation) {
			return s.declineWithdrawal(ctx, card, response, violation.Reason)
		}
		return s.failWithdrawal(ctx, card, response, err)
	}

	entry, err := s.ledger.PostWithdrawal(ctx, card, req.Amount, messageWithdrawalSuccess)
	if err != nil {
		// The posting re-checks status and balance under the row lock;
		// losing that race is a decline, not a failure.
		switch {
		case errors.Is(err, domain.ErrInsufficientBalance):
			return s.declineWithdrawal(ctx, card, response, domain.ErrInsufficientBalance.Error())
		case errors.Is(err, domain.ErrCardNotActive):
			return s.declineWithdrawal(ctx, card, response, messageCardNotActive)
		case errors.Is(err, domain.ErrRecordNotFound):
			return commons.ErrorResponse[models.WithdrawalResponse]("Card not found"), err
		default:
			return s.failWithdrawal(ctx, card, response, err)
		}
	}

	response.Status = string(domain.TransferStatusSuccess)
	response.Message = messageWithdrawalSuccess
	response.Reference = entry.Reference
	response.Timestamp = entry.TransactionDate

	logger.Info("card service withdrawal success", logger.Fields{
		"cardId":    card.ID,
		"reference": entry.Reference,
	})
	return commons.SuccessResponse(messageWithdrawalSuccess, response), nil
}

func (s *CardService) Transfer(ctx context.Context, req models.TransferRequest) (commons.Response[models.TransferResponse], error) {
	logger.Info("card service transfer request", logger.Fields{
		"payload": logger.SanitizePayload(req),
	})

	if err := req.Validate(); err != nil {
		return commons.ErrorResponse[models.TransferResponse]("validation failed", err.Error()), err
	}

	fromCard, err := s.cardRepo.FindByID(ctx, req.FromCardID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return commons.ErrorResponse[models.TransferResponse]("Source card not found"), err
		}
		return commons.ErrorResponse[models.TransferResponse]("failed to process transfer", "Unable to process transfer right now"), err
	}
	toCard, err := s.cardRepo.FindByID(ctx, req.ToCardID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return commons.ErrorResponse[models.TransferResponse]("Destination card not found"), err
		}
		return commons.ErrorResponse[models.TransferResponse]("failed to process transfer", "Unable to process transfer right now"), err
	}

	response := models.TransferResponse{
		FromCardID: fromCard.ID,
		ToCardID:   toCard.ID,
		Amount:     req.Amount,
		Timestamp:  time.Now(),
	}

	if fromCard.ID == toCard.ID {
		return s.declineTransfer(ctx, fromCard, toCard, response, messageSameCardTransfer)
	}

	if fromCard.Status != domain.CardStatusActive || toCard.Status != domain.CardStatusActive {
		return s.declineTransfer(ctx, fromCard, toCard, response, messageBothCardsActive)
	}

	if err := s.limits.Check(ctx, fromCard, req.Amount); err != nil {
		var violation *domain.LimitViolationError
		if errors.As(err, &violation) {
			return s.declineTransfer(ctx, fromCard, toCard, response, violation.Reason)
		}
		return s.failTransfer(ctx, fromCard, toCard, response, err)
	}

	outEntry, _, err := s.ledger.PostTransfer(ctx, fromCard, toCard, req.Amount, messageTransferOut, messageTransferIn)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientBalance):
			return s.declineTransfer(ctx, fromCard, toCard, response, domain.ErrInsufficientBalance.Error())
		case errors.Is(err, domain.ErrCardNotActive):
			return s.declineTransfer(ctx, fromCard, toCard, response, messageBothCardsActive)
		case errors.Is(err, domain.ErrRecordNotFound):
			return commons.ErrorResponse[models.TransferResponse]("Card not found"), err
		default:
			return s.failTransfer(ctx, fromCard, toCard, response, err)
		}
	}

	response.Status = string(domain.TransferStatusSuccess)
	response.Message = messageTransferOut
	response.Reference = outEntry.Reference
	response.Timestamp = outEntry.TransactionDate

	logger.Info("card service transfer success", logger.Fields{
		"fromCardId": fromCard.ID,
		"toCardId":   toCard.ID,
		"reference":  outEntry.Reference,
	})
	return commons.SuccessResponse("Transfer completed successfully", response), nil
}

// BlockCard moves an active card to BLOCKED. Not a funds movement, so
// no ledger entry is written.
func (s *CardService) BlockCard(ctx context.Context, cardID int64) (commons.Response[models.CardResponse], error) {
	card, err := s.cardRepo.FindByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return commons.ErrorResponse[models.CardResponse]("Card not found"), err
		}
		return commons.ErrorResponse[models.CardResponse]("failed to block card", "Unable to block card right now"), err
	}

	switch card.Status {
	case domain.CardStatusBlocked:
		err := fmt.Errorf("card %d is already blocked", cardID)
		return commons.ErrorResponse[models.CardResponse]("Cannot block card", err.Error()), err
	case domain.CardStatusExpired:
		err := fmt.Errorf("cannot block an expired card")
		return commons.ErrorResponse[models.CardResponse]("Cannot block card", err.Error()), err
	}

	card.Status = domain.CardStatusBlocked
	updated, err := s.cardRepo.Save(ctx, card)
	if err != nil {
		return commons.ErrorResponse[models.CardResponse]("failed to block card", "Unable to block card right now"), err
	}

	logger.Info("card service card blocked", logger.Fields{
		"cardId": updated.ID,
	})
	return commons.SuccessResponse("Card blocked", mapCardToResponse(updated)), nil
}

func (s *CardService) declineWithdrawal(ctx context.Context, card domain.Card, response models.WithdrawalResponse, reason string) (commons.Response[models.WithdrawalResponse], error) {
	entry, err := s.ledger.Append(ctx, card, nil, response.Amount, domain.TransactionTypeWithdrawal, domain.TransferStatusDeclined, reason)
	if err != nil {
		return commons.ErrorResponse[models.WithdrawalResponse]("withdrawal failed", "Unable to record the declined attempt"), err
	}

	response.Status = string(domain.TransferStatusDeclined)
	response.Message = reason
	response.Reference = entry.Reference
	response.Timestamp = entry.TransactionDate

	logger.Info("card service withdrawal declined", logger.Fields{
		"cardId": card.ID,
		"reason": reason,
	})
	return commons.DeclinedResponse(reason, response), nil
}

func (s *CardService) failWithdrawal(ctx context.Context, card domain.Card, response models.WithdrawalResponse, cause error) (commons.Response[models.WithdrawalResponse], error) {
	logger.Error("card service withdrawal failed", cause, logger.Fields{
		"cardId": card.ID,
	})

	entry, err := s.ledger.Append(ctx, card, nil, response.Amount, domain.TransactionTypeWithdrawal, domain.TransferStatusFailed, messageInternalError)
	if err != nil {
		return commons.ErrorResponse[models.WithdrawalResponse]("withdrawal failed", "Unable to complete withdrawal"), errors.Join(cause, err)
	}

	response.Status = string(domain.TransferStatusFailed)
	response.Message = messageInternalError
	response.Reference = entry.Reference
	response.Timestamp = entry.TransactionDate

	return commons.Response[models.WithdrawalResponse]{
		Success: false,
		Message: messageInternalError,
		Data:    &response,
		Errors:  []string{"Unable to complete withdrawal"},
	}, cause
}

func (s *CardService) declineTransfer(ctx context.Context, fromCard, toCard domain.Card, response models.TransferResponse, reason string) (commons.Response[models.TransferResponse], error) {
	entry, err := s.ledger.Append(ctx, fromCard, &toCard, response.Amount, domain.TransactionTypeTransferOut, domain.TransferStatusDeclined, reason)
	if err != nil {
		return commons.ErrorResponse[models.TransferResponse]("transfer failed", "Unable to record the declined attempt"), err
	}

	response.Status = string(domain.TransferStatusDeclined)
	response.Message = reason
	response.Reference = entry.Reference
	response.Timestamp = entry.TransactionDate

	logger.Info("card service transfer declined", logger.Fields{
		"fromCardId": fromCard.ID,
		"toCardId":   toCard.ID,
		"reason":     reason,
	})
	return commons.DeclinedResponse(reason, response), nil
}

func (s *CardService) failTransfer(ctx context.Context, fromCard, toCard domain.Card, response models.TransferResponse, cause error) (commons.Response[models.TransferResponse], error) {
	logger.Error("card service transfer failed", cause, logger.Fields{
		"fromCardId": fromCard.ID,
		"toCardId":   toCard.ID,
	})

	entry, err := s.ledger.Append(ctx, fromCard, &toCard, response.Amount, domain.TransactionTypeTransferOut, domain.TransferStatusFailed, messageInternalError)
	if err != nil {
		return commons.ErrorResponse[models.TransferResponse]("transfer failed", "Unable to complete transfer"), errors.Join(cause, err)
	}

	response.Status = string(domain.TransferStatusFailed)
	response.Message = messageInternalError
	response.Reference = entry.Reference
	response.Timestamp = entry.TransactionDate

	return commons.Response[models.TransferResponse]{
		Success: false,
		Message: messageInternalError,
		Data:    &response,
		Errors:  []string{"Unable to complete transfer"},
	}, cause
}

func mapCardToResponse(card domain.Card) models.CardResponse {
	return models.CardResponse{
		ID:         card.ID,
		CardHolder: card.CardHolder,
		ExpiryDate: card.ExpiryDate,
		Status:     string(card.Status),
		Balance:    card.Balance,
	}
}
