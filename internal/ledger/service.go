package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/money"
	"github.com/marondal/donation-engine/pkg/outbox"
	"github.com/marondal/donation-engine/pkg/outbox/payloads"
	"github.com/marondal/donation-engine/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service appends to and reads from per-farm vault ledgers. Appends
// serialize on the farm row lock so seq assignment and the running balance
// never race.
type Service interface {
	RecordDonation(ctx context.Context, input RecordDonationInput) (*models.VaultLedgerEntry, error)
	// RecordDebit appends a settlement or withdrawal debit inside the
	// caller's transaction. The settlement orchestrator owns the outer tx.
	RecordDebit(ctx context.Context, tx *gorm.DB, input RecordDebitInput) (*models.VaultLedgerEntry, error)
	History(ctx context.Context, input HistoryInput) (*HistoryPage, error)
}

type service struct {
	repo   Repository
	farms  farms.Repository
	tx     txRunner
	outbox outboxPublisher
	rate   decimal.Decimal
}

// RecordDonationInput captures a donation credited to a farm vault.
type RecordDonationInput struct {
	FarmID          uuid.UUID
	TokenAmount     decimal.Decimal
	DonorName       string
	TransactionHash string
	OccurredAt      time.Time
}

// RecordDebitInput captures a settlement debit against a farm vault.
type RecordDebitInput struct {
	FarmID           uuid.UUID
	Type             enums.LedgerEntryType
	TokenAmount      decimal.Decimal
	CounterpartyName string
	OccurredAt       time.Time
}

// HistoryInput filters and pages a farm's ledger.
type HistoryInput struct {
	FarmID uuid.UUID
	Window pagination.Window
	Params pagination.Params
}

// HistoryPage is one page of ledger history, newest first.
type HistoryPage struct {
	Entries    []models.VaultLedgerEntry
	NextCursor string
}

// NewService wires the ledger service with its dependencies.
func NewService(repo Repository, farmRepo farms.Repository, tx txRunner, publisher outboxPublisher, rate decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if farmRepo == nil {
		return nil, fmt.Errorf("farms repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("token rate must be positive")
	}
	return &service{
		repo:   repo,
		farms:  farmRepo,
		tx:     tx,
		outbox: publisher,
		rate:   rate,
	}, nil
}

func (s *service) RecordDonation(ctx context.Context, input RecordDonationInput) (*models.VaultLedgerEntry, error) {
	if input.FarmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if !money.IsPositive(input.TokenAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "donation amount must be positive")
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	var entry *models.VaultLedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		appended, err := s.append(ctx, tx, appendInput{
			farmID:           input.FarmID,
			entryType:        enums.LedgerEntryTypeDonation,
			tokenAmount:      input.TokenAmount,
			counterpartyName: input.DonorName,
			transactionHash:  input.TransactionHash,
			occurredAt:       occurredAt,
		})
		if err != nil {
			return err
		}
		entry = appended

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDonationRecorded,
			AggregateType: enums.AggregateLedgerEntry,
			AggregateID:   entry.ID,
			Version:       1,
			OccurredAt:    occurredAt,
			Data: payloads.DonationRecordedEvent{
				FarmID:        entry.FarmID,
				LedgerEntryID: entry.ID,
				Seq:           entry.Seq,
				TokenAmount:   entry.TokenAmount,
				BalanceAfter:  entry.BalanceAfter,
				DonorName:     input.DonorName,
				OccurredAt:    occurredAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) RecordDebit(ctx context.Context, tx *gorm.DB, input RecordDebitInput) (*models.VaultLedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.FarmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if !input.Type.IsValid() || !input.Type.IsDebit() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debit entry type required")
	}
	if !money.IsPositive(input.TokenAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return s.append(ctx, tx, appendInput{
		farmID:           input.FarmID,
		entryType:        input.Type,
		tokenAmount:      input.TokenAmount,
		counterpartyName: input.CounterpartyName,
		occurredAt:       occurredAt,
	})
}

type appendInput struct {
	farmID           uuid.UUID
	entryType        enums.LedgerEntryType
	tokenAmount      decimal.Decimal
	counterpartyName string
	transactionHash  string
	occurredAt       time.Time
}

// append assigns the next seq and running balance under the farm row lock.
func (s *service) append(ctx context.Context, tx *gorm.DB, input appendInput) (*models.VaultLedgerEntry, error) {
	farmRepo := s.farms.WithTx(tx)
	ledgerRepo := s.repo.WithTx(tx)

	farm, err := farmRepo.FindByIDForUpdate(ctx, input.farmID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farm not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock farm")
	}

	last, err := ledgerRepo.LastEntry(ctx, input.farmID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load last ledger entry")
	}

	seq := int64(1)
	balance := decimal.Zero
	if last != nil {
		seq = last.Seq + 1
		balance = last.BalanceAfter
	}

	if input.entryType.IsDebit() {
		if balance.LessThan(input.tokenAmount) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "vault balance below debit amount").
				WithDetails(map[string]string{
					"balance":   balance.String(),
					"requested": input.tokenAmount.String(),
				})
		}
		balance = balance.Sub(input.tokenAmount)
	} else {
		balance = balance.Add(input.tokenAmount)
	}

	entry := &models.VaultLedgerEntry{
		FarmID:           input.farmID,
		Seq:              seq,
		Type:             input.entryType,
		TokenAmount:      input.tokenAmount,
		FiatAmount:       money.TokensToFiat(input.tokenAmount, s.rate),
		BalanceAfter:     balance,
		TransactionHash:  input.transactionHash,
		CounterpartyName: input.counterpartyName,
		OccurredAt:       input.occurredAt,
	}
	if err := ledgerRepo.Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ledger entry")
	}

	farm.VaultBalance = balance
	if input.entryType == enums.LedgerEntryTypeDonation {
		farm.MonthlyRaised = farm.MonthlyRaised.Add(input.tokenAmount)
	}
	if err := farmRepo.Save(ctx, farm); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update farm balance")
	}

	return entry, nil
}

func (s *service) History(ctx context.Context, input HistoryInput) (*HistoryPage, error) {
	if input.FarmID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	if input.Window.From != nil && input.Window.To != nil && input.Window.To.Before(*input.Window.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date range end before start")
	}

	cursor, err := pagination.ParseCursor(input.Params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Params.Limit)
	entries, err := s.repo.List(ctx, input.FarmID, input.Window, cursor, pagination.LimitWithBuffer(input.Params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}

	page := &HistoryPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		tail := page.Entries[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			OccurredAt: tail.OccurredAt,
			Seq:        tail.Seq,
		})
	}
	return page, nil
}
