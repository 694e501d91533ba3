package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/internal/ledger"
	"github.com/marondal/donation-engine/internal/receipts"
	"github.com/marondal/donation-engine/pkg/chain"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/logger"
	"github.com/marondal/donation-engine/pkg/metrics"
	"github.com/marondal/donation-engine/pkg/money"
	"github.com/marondal/donation-engine/pkg/outbox"
	"github.com/marondal/donation-engine/pkg/outbox/payloads"
	"github.com/marondal/donation-engine/pkg/payout"
)

const lockScope = "settlement"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type locker interface {
	AcquireLock(ctx context.Context, scope, id, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, scope, id, token string) error
}

type debitRecorder interface {
	RecordDebit(ctx context.Context, tx *gorm.DB, input ledger.RecordDebitInput) (*models.VaultLedgerEntry, error)
}

type payoutClient interface {
	Transfer(ctx context.Context, req payout.TransferRequest) (*payout.TransferResult, error)
}

type burnClient interface {
	Burn(ctx context.Context, req chain.BurnRequest) (*chain.BurnResult, error)
}

// Service drives the three-step settlement chain for a verified receipt:
// ledger debit, fiat withdrawal, token burn. Each completed step is recorded
// on the receipt before the next one runs, so a retry resumes exactly where
// the previous attempt stopped and never repeats a durable side effect. The
// receipt's idempotency key doubles as the partner reference key on the
// withdrawal and burn calls.
type Service interface {
	Settle(ctx context.Context, receiptID uuid.UUID) (*models.ReceiptSubmission, error)
	// ListPartialFailures surfaces stuck settlements for operator review.
	ListPartialFailures(ctx context.Context, limit int) ([]models.ReceiptSubmission, error)
}

type service struct {
	receipts receipts.Repository
	farms    farms.Repository
	ledger   debitRecorder
	payout   payoutClient
	chain    burnClient
	locks    locker
	tx       txRunner
	outbox   outboxPublisher
	metrics  *metrics.SettlementMetrics
	logg     *logger.Logger

	rate    decimal.Decimal
	lockTTL time.Duration
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Receipts receipts.Repository
	Farms    farms.Repository
	Ledger   debitRecorder
	Payout   payoutClient
	Chain    burnClient
	Locks    locker
	Tx       txRunner
	Outbox   outboxPublisher
	Metrics  *metrics.SettlementMetrics
	Logger   *logger.Logger

	Rate    decimal.Decimal
	LockTTL time.Duration
}

// NewService wires the settlement orchestrator.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Receipts == nil:
		return nil, fmt.Errorf("receipts repository required")
	case deps.Farms == nil:
		return nil, fmt.Errorf("farms repository required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case deps.Payout == nil:
		return nil, fmt.Errorf("payout client required")
	case deps.Chain == nil:
		return nil, fmt.Errorf("chain client required")
	case deps.Locks == nil:
		return nil, fmt.Errorf("locker required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case deps.Rate.Sign() <= 0:
		return nil, fmt.Errorf("token rate must be positive")
	case deps.LockTTL <= 0:
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	return &service{
		receipts: deps.Receipts,
		farms:    deps.Farms,
		ledger:   deps.Ledger,
		payout:   deps.Payout,
		chain:    deps.Chain,
		locks:    deps.Locks,
		tx:       deps.Tx,
		outbox:   deps.Outbox,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		rate:     deps.Rate,
		lockTTL:  deps.LockTTL,
	}, nil
}

func (s *service) Settle(ctx context.Context, receiptID uuid.UUID) (*models.ReceiptSubmission, error) {
	if receiptID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt id required")
	}

	token := uuid.NewString()
	acquired, err := s.locks.AcquireLock(ctx, lockScope, receiptID.String(), token, s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire settlement lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "settlement already in progress")
	}
	defer func() {
		if err := s.locks.ReleaseLock(ctx, lockScope, receiptID.String(), token); err != nil {
			s.logg.Error(ctx, "release settlement lock", err)
		}
	}()

	started := time.Now()

	receipt, err := s.receipts.FindByID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load receipt")
	}

	switch receipt.Status {
	case enums.ReceiptStatusSettled:
		// Fully processed; replaying the trigger is a no-op.
		return receipt, nil
	case enums.ReceiptStatusVerifiedEligible:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "receipt is not eligible for settlement").
			WithDetails(map[string]string{"status": string(receipt.Status)})
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"receipt_id":      receipt.ID.String(),
		"farm_id":         receipt.FarmID.String(),
		"idempotency_key": receipt.IdempotencyKey,
	})

	if receipt.FailedStep != nil {
		s.metrics.IncRetried()
		s.logg.Info(ctx, "resuming settlement after partial failure")
	}

	farm, err := s.farms.FindByID(ctx, receipt.FarmID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farm not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farm")
	}

	tokenAmount, err := money.FiatToTokens(receipt.ClaimedAmount, s.rate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert claimed amount")
	}

	if err := s.runDebit(ctx, receipt, tokenAmount); err != nil {
		// An over-debit rolls the transaction back whole, so nothing durable
		// happened: report it as a plain failure, not a stuck settlement.
		if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeInsufficientFunds {
			s.metrics.ObserveDuration("aborted", time.Since(started))
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "settlement aborted before debit")
			return nil, err
		}
		return nil, s.partialFailure(ctx, receipt, enums.SettlementStepDebit, started, err)
	}
	if err := s.runWithdrawal(ctx, receipt, farm); err != nil {
		return nil, s.partialFailure(ctx, receipt, enums.SettlementStepWithdrawal, started, err)
	}
	if err := s.runBurn(ctx, receipt, farm, tokenAmount); err != nil {
		return nil, s.partialFailure(ctx, receipt, enums.SettlementStepBurn, started, err)
	}

	if err := s.complete(ctx, receipt, tokenAmount); err != nil {
		return nil, err
	}

	s.metrics.IncCompleted(string(receipt.Category))
	s.metrics.ObserveDuration("completed", time.Since(started))
	s.logg.Info(ctx, "settlement completed")
	return receipt, nil
}

func (s *service) ListPartialFailures(ctx context.Context, limit int) ([]models.ReceiptSubmission, error) {
	stuck, err := s.receipts.ListPartialFailures(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list partial failures")
	}
	return stuck, nil
}

// runDebit appends the SETTLEMENT ledger entry and stamps the receipt in one
// transaction. A receipt that was already debited skips straight through.
func (s *service) runDebit(ctx context.Context, receipt *models.ReceiptSubmission, tokenAmount decimal.Decimal) error {
	if receipt.DebitedAt != nil {
		return nil
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entry, err := s.ledger.RecordDebit(ctx, tx, ledger.RecordDebitInput{
			FarmID:           receipt.FarmID,
			Type:             enums.LedgerEntryTypeSettlement,
			TokenAmount:      tokenAmount,
			CounterpartyName: receipt.StoreName,
		})
		if err != nil {
			return err
		}

		now := time.Now()
		receipt.DebitedAt = &now
		receipt.LedgerEntryID = &entry.ID
		if err := s.receipts.WithTx(tx).Save(ctx, receipt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record debit progress")
		}
		return nil
	})
}

func (s *service) runWithdrawal(ctx context.Context, receipt *models.ReceiptSubmission, farm *models.Farm) error {
	if receipt.PayoutTxRef != nil {
		return nil
	}
	result, err := s.payout.Transfer(ctx, payout.TransferRequest{
		BankAccountRef: farm.BankAccountRef,
		AmountKRW:      receipt.ClaimedAmount,
		ReferenceKey:   receipt.IdempotencyKey,
		Memo:           fmt.Sprintf("%s settlement", receipt.Category),
	})
	if err != nil {
		return err
	}

	receipt.PayoutTxRef = &result.TxRef
	if err := s.receipts.Save(ctx, receipt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record withdrawal progress")
	}
	return nil
}

func (s *service) runBurn(ctx context.Context, receipt *models.ReceiptSubmission, farm *models.Farm, tokenAmount decimal.Decimal) error {
	if receipt.BurnTxHash != nil {
		return nil
	}
	result, err := s.chain.Burn(ctx, chain.BurnRequest{
		VaultAddress: farm.VaultAddress,
		TokenAmount:  tokenAmount,
		ReferenceKey: receipt.IdempotencyKey,
	})
	if err != nil {
		return err
	}

	receipt.BurnTxHash = &result.TxHash
	if err := s.receipts.Save(ctx, receipt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record burn progress")
	}
	return nil
}

func (s *service) complete(ctx context.Context, receipt *models.ReceiptSubmission, tokenAmount decimal.Decimal) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now()
		receipt.Status = enums.ReceiptStatusSettled
		receipt.SettledAt = &now
		receipt.FailedStep = nil
		if err := s.receipts.WithTx(tx).Save(ctx, receipt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize settlement")
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementCompleted,
			AggregateType: enums.AggregateReceiptSubmission,
			AggregateID:   receipt.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.SettlementCompletedEvent{
				ReceiptID:     receipt.ID,
				FarmID:        receipt.FarmID,
				LedgerEntryID: derefUUID(receipt.LedgerEntryID),
				TokenAmount:   tokenAmount,
				FiatAmount:    receipt.ClaimedAmount,
				PayoutTxRef:   derefString(receipt.PayoutTxRef),
				BurnTxHash:    derefString(receipt.BurnTxHash),
				SettledAt:     now,
			},
		})
	})
}

// partialFailure pins the failed step on the receipt so the next attempt
// resumes there, and reports the failure for operator reconciliation.
func (s *service) partialFailure(ctx context.Context, receipt *models.ReceiptSubmission, step enums.SettlementStep, started time.Time, cause error) error {
	persistErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		receipt.FailedStep = &step
		if err := s.receipts.WithTx(tx).Save(ctx, receipt); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementPartialFailure,
			AggregateType: enums.AggregateReceiptSubmission,
			AggregateID:   receipt.ID,
			Version:       1,
			OccurredAt:    time.Now(),
			Data: payloads.SettlementPartialFailureEvent{
				ReceiptID:  receipt.ID,
				FarmID:     receipt.FarmID,
				FailedStep: step,
				Error:      cause.Error(),
			},
		})
	})
	if persistErr != nil {
		s.logg.Error(ctx, "persist settlement failure state", persistErr)
		cause = multierr.Append(cause, persistErr)
	}

	s.metrics.IncPartialFailure(string(step))
	s.metrics.ObserveDuration("partial_failure", time.Since(started))
	s.logg.Error(s.logg.WithField(ctx, "failed_step", string(step)), "settlement step failed", cause)

	return pkgerrors.Wrap(pkgerrors.CodePartialSettlement, cause, "settlement stopped at "+string(step)).
		WithDetails(map[string]string{
			"failed_step":     string(step),
			"receipt_id":      receipt.ID.String(),
			"idempotency_key": receipt.IdempotencyKey,
		})
}

func derefUUID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
