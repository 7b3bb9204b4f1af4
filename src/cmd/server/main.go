package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Ionina34/Bank-card-management-system/src/internal/adapter/http/models"
	"github.com/Ionina34/Bank-card-management-system/src/internal/adapter/repository/postgres"
	"github.com/Ionina34/Bank-card-management-system/src/internal/adapter/repository/sqlite"
	"github.com/Ionina34/Bank-card-management-system/src/internal/config"
	"github.com/Ionina34/Bank-card-management-system/src/internal/domain"
	"github.com/Ionina34/Bank-card-management-system/src/internal/security"
	"github.com/Ionina34/Bank-card-management-system/src/internal/usecase/services"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "card-ledger",
		Short:         "Card-account ledger operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		migrateCommand(),
		seedCommand(),
		withdrawCommand(),
		transferCommand(),
		blockCommand(),
		historyCommand(),
	)

	if err := root.Execute(); err != nil {
		log.Fatalf("card-ledger: %v", err)
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if cfg.DatabaseDriver == "sqlite" {
				db, err := sqlite.Open(ctx, cfg.DatabaseDSN)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := sqlite.EnsureSchema(ctx, db); err != nil {
					return err
				}
				log.Println("sqlite schema is up to date")
				return nil
			}

			if err := postgres.RunMigrations(ctx, cfg.DatabaseDSN, cfg.MigrationsDir); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			log.Println("migrations completed successfully")
			return nil
		},
	}
}

func seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Provision a pair of demo cards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd.Context(), func(ctx context.Context, b backend) error {
				cipher, err := security.NewCardCipher(b.cfg.CardNumberSecret)
				if err != nil {
					return err
				}

				dailyLimit := decimal.NewFromInt(1000)
				singleLimit := decimal.NewFromInt(500)

				demo := []struct {
					number string
					card   domain.Card
				}{
					{
						number: "4000123412341234",
						card: domain.Card{
							UserID:                 1,
							CardHolder:             "DEMO HOLDER ONE",
							ExpiryDate:             time.Now().AddDate(3, 0, 0),
							Status:                 domain.CardStatusActive,
							Balance:                decimal.NewFromInt(1500),
							DailyLimit:             &dailyLimit,
							SingleTransactionLimit: &singleLimit,
						},
					},
					{
						number: "5100432143214321",
						card: domain.Card{
							UserID:     2,
							CardHolder: "DEMO HOLDER TWO",
							ExpiryDate: time.Now().AddDate(3, 0, 0),
							Status:     domain.CardStatusActive,
							Balance:    decimal.NewFromInt(200),
						},
					},
				}

				for _, item := range demo {
					encrypted, err := cipher.Encrypt(item.number)
					if err != nil {
						return err
					}
					item.card.EncryptedCardNumber = encrypted

					created, err := b.cardRepo.Create(ctx, item.card)
					if err != nil {
						return err
					}
					fmt.Printf("card %d  %s  balance %s\n", created.ID, security.Mask(item.number), created.Balance.StringFixed(2))
				}
				return nil
			})
		},
	}
}

func withdrawCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <cardId> <amount>",
		Short: "Withdraw funds from a card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, amount, err := parseCardAndAmount(args[0], args[1])
			if err != nil {
				return err
			}

			return withBackend(cmd.Context(), func(ctx context.Context, b backend) error {
				response, err := b.cardService.Withdraw(ctx, models.WithdrawalRequest{
					CardID: cardID,
					Amount: amount,
				})
				printJSON(response)
				// Declines return a nil error: the outcome above is the
				// answer, not a CLI failure.
				return err
			})
		},
	}
}

func transferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <fromCardId> <toCardId> <amount>",
		Short: "Transfer funds between two cards",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromCardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("fromCardId must be an integer: %w", err)
			}
			toCardID, amount, err := parseCardAndAmount(args[1], args[2])
			if err != nil {
				return err
			}

			return withBackend(cmd.Context(), func(ctx context.Context, b backend) error {
				response, err := b.cardService.Transfer(ctx, models.TransferRequest{
					FromCardID: fromCardID,
					ToCardID:   toCardID,
					Amount:     amount,
				})
				printJSON(response)
				return err
			})
		},
	}
}

func blockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "block <cardId>",
		Short: "Block a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("cardId must be an integer: %w", err)
			}

			return withBackend(cmd.Context(), func(ctx context.Context, b backend) error {
				response, err := b.cardService.BlockCard(ctx, cardID)
				printJSON(response)
				return err
			})
		},
	}
}

func historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <cardId>",
		Short: "Show recent ledger entries for a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("cardId must be an integer: %w", err)
			}

			return withBackend(cmd.Context(), func(ctx context.Context, b backend) error {
				response, err := b.transactionService.GetCardTransactions(ctx, cardID, limit)
				printJSON(response)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	return cmd
}

type backend struct {
	cfg                config.Config
	cardRepo           domain.CardRepository
	cardService        *services.CardService
	transactionService *services.TransactionService
}

func withBackend(ctx context.Context, fn func(context.Context, backend) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var (
		db              *sql.DB
		cardRepo        domain.CardRepository
		transactionRepo domain.TransactionRepository
	)

	switch cfg.DatabaseDriver {
	case "sqlite":
		db, err = sqlite.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		if err := sqlite.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return err
		}
		cardRepo = sqlite.NewCardRepository(db)
		transactionRepo = sqlite.NewTransactionRepository(db)
	default:
		db, err = postgres.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		cardRepo = postgres.NewCardRepository(db)
		transactionRepo = postgres.NewTransactionRepository(db)
	}
	defer db.Close()

	ledger := services.NewTransactionService(cardRepo, transactionRepo)
	limits := services.NewLimitChecker(ledger)
	cardService := services.NewCardService(cardRepo, ledger, limits)

	return fn(ctx, backend{
		cfg:                cfg,
		cardRepo:           cardRepo,
		cardService:        cardService,
		transactionService: ledger,
	})
}

func parseCardAndAmount(cardArg, amountArg string) (int64, decimal.Decimal, error) {
	cardID, err := strconv.ParseInt(cardArg, 10, 64)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("cardId must be an integer: %w", err)
	}

	amount, err := decimal.NewFromString(amountArg)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("amount must be a decimal number: %w", err)
	}

	return cardID, amount, nil
}

func printJSON(value any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		log.Printf("render response: %v", err)
	}
}
