package settlement

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/internal/ledger"
	"github.com/marondal/donation-engine/internal/receipts"
	"github.com/marondal/donation-engine/pkg/chain"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/logger"
	"github.com/marondal/donation-engine/pkg/outbox"
	"github.com/marondal/donation-engine/pkg/payout"
)

type fakeReceiptRepo struct {
	receipt *models.ReceiptSubmission
	stuck   []models.ReceiptSubmission
	saves   int
}

func (f *fakeReceiptRepo) WithTx(tx *gorm.DB) receipts.Repository { return f }

func (f *fakeReceiptRepo) Create(ctx context.Context, receipt *models.ReceiptSubmission) error {
	return nil
}

func (f *fakeReceiptRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ReceiptSubmission, error) {
	if f.receipt == nil || f.receipt.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.receipt, nil
}

func (f *fakeReceiptRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ReceiptSubmission, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeReceiptRepo) FindByIdempotencyKey(ctx context.Context, key string) (*models.ReceiptSubmission, error) {
	return nil, nil
}

func (f *fakeReceiptRepo) ApprovalNumberExists(ctx context.Context, farmID uuid.UUID, approvalNumber string) (bool, error) {
	return false, nil
}

func (f *fakeReceiptRepo) ListByFarm(ctx context.Context, farmID uuid.UUID, status *enums.ReceiptStatus, limit int) ([]models.ReceiptSubmission, error) {
	return nil, nil
}

func (f *fakeReceiptRepo) ListPartialFailures(ctx context.Context, limit int) ([]models.ReceiptSubmission, error) {
	return f.stuck, nil
}

func (f *fakeReceiptRepo) Save(ctx context.Context, receipt *models.ReceiptSubmission) error {
	f.saves++
	f.receipt = receipt
	return nil
}

type fakeFarmRepo struct {
	farm *models.Farm
}

func (f *fakeFarmRepo) WithTx(tx *gorm.DB) farms.Repository { return f }

func (f *fakeFarmRepo) Create(ctx context.Context, farm *models.Farm) error { return nil }

func (f *fakeFarmRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	if f.farm == nil || f.farm.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.farm, nil
}

func (f *fakeFarmRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeFarmRepo) List(ctx context.Context, status *enums.FarmStatus, limit int) ([]models.Farm, error) {
	return nil, nil
}

func (f *fakeFarmRepo) Save(ctx context.Context, farm *models.Farm) error { return nil }

type fakeLedger struct {
	calls int
	err   error
	last  ledger.RecordDebitInput
}

func (f *fakeLedger) RecordDebit(ctx context.Context, tx *gorm.DB, input ledger.RecordDebitInput) (*models.VaultLedgerEntry, error) {
	f.calls++
	f.last = input
	if f.err != nil {
		return nil, f.err
	}
	return &models.VaultLedgerEntry{ID: uuid.New(), FarmID: input.FarmID, TokenAmount: input.TokenAmount}, nil
}

type fakePayout struct {
	calls   int
	err     error
	lastRef string
}

func (f *fakePayout) Transfer(ctx context.Context, req payout.TransferRequest) (*payout.TransferResult, error) {
	f.calls++
	f.lastRef = req.ReferenceKey
	if f.err != nil {
		return nil, f.err
	}
	return &payout.TransferResult{TxRef: "payout-tx-1"}, nil
}

type fakeChain struct {
	calls   int
	err     error
	lastRef string
}

func (f *fakeChain) Burn(ctx context.Context, req chain.BurnRequest) (*chain.BurnResult, error) {
	f.calls++
	f.lastRef = req.ReferenceKey
	if f.err != nil {
		return nil, f.err
	}
	return &chain.BurnResult{TxHash: "0xburn1"}, nil
}

type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLocker) AcquireLock(ctx context.Context, scope, id, token string, ttl time.Duration) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	f.acquired++
	return true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, scope, id, token string) error {
	f.held = false
	f.released++
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range f.events {
		if existing.EventType == event.EventType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	f.events = append(f.events, event)
	return nil
}

type settleFixture struct {
	svc     Service
	repo    *fakeReceiptRepo
	ledger  *fakeLedger
	payout  *fakePayout
	chain   *fakeChain
	locks   *fakeLocker
	outbox  *fakeOutbox
	receipt *models.ReceiptSubmission
	farm    *models.Farm
}

func newFixture(t *testing.T) *settleFixture {
	t.Helper()

	farm := &models.Farm{
		ID:             uuid.New(),
		BankAccountRef: "bank-ref-1",
		VaultAddress:   "0xvault",
		VaultBalance:   decimal.NewFromInt(1000),
	}
	receipt := &models.ReceiptSubmission{
		ID:             uuid.New(),
		IdempotencyKey: "20250601-abcdef-0001",
		FarmID:         farm.ID,
		Category:       enums.ExpenseCategoryFeed,
		ClaimedAmount:  decimal.NewFromInt(50000),
		StoreName:      "제주마사료상회",
		Status:         enums.ReceiptStatusVerifiedEligible,
	}

	repo := &fakeReceiptRepo{receipt: receipt}
	ledgerFake := &fakeLedger{}
	payoutFake := &fakePayout{}
	chainFake := &fakeChain{}
	locks := &fakeLocker{}
	publisher := &fakeOutbox{}

	svc, err := NewService(Deps{
		Receipts: repo,
		Farms:    &fakeFarmRepo{farm: farm},
		Ledger:   ledgerFake,
		Payout:   payoutFake,
		Chain:    chainFake,
		Locks:    locks,
		Tx:       stubTxRunner{},
		Outbox:   publisher,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Rate:     decimal.NewFromInt(100),
		LockTTL:  2 * time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	return &settleFixture{
		svc:     svc,
		repo:    repo,
		ledger:  ledgerFake,
		payout:  payoutFake,
		chain:   chainFake,
		locks:   locks,
		outbox:  publisher,
		receipt: receipt,
		farm:    farm,
	}
}

func TestService_SettleHappyPath(t *testing.T) {
	fx := newFixture(t)

	receipt, err := fx.svc.Settle(context.Background(), fx.receipt.ID)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	if receipt.Status != enums.ReceiptStatusSettled {
		t.Fatalf("expected SETTLED, got %s", receipt.Status)
	}
	if receipt.SettledAt == nil || receipt.DebitedAt == nil {
		t.Fatal("progress timestamps missing")
	}
	if receipt.PayoutTxRef == nil || *receipt.PayoutTxRef != "payout-tx-1" {
		t.Fatalf("payout ref not recorded: %v", receipt.PayoutTxRef)
	}
	if receipt.BurnTxHash == nil || *receipt.BurnTxHash != "0xburn1" {
		t.Fatalf("burn hash not recorded: %v", receipt.BurnTxHash)
	}
	// 50000 KRW at 100 KRW per token.
	if !fx.ledger.last.TokenAmount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected 500 token debit, got %s", fx.ledger.last.TokenAmount)
	}
	if fx.payout.lastRef != fx.receipt.IdempotencyKey || fx.chain.lastRef != fx.receipt.IdempotencyKey {
		t.Fatal("idempotency key must be the partner reference key")
	}
	if fx.locks.released != 1 {
		t.Fatal("settlement lock not released")
	}

	var completed bool
	for _, event := range fx.outbox.events {
		if event.EventType == enums.EventSettlementCompleted {
			completed = true
		}
	}
	if !completed {
		t.Fatal("expected settlement_completed event")
	}
}

func TestService_SettleReplayAfterSettled(t *testing.T) {
	fx := newFixture(t)
	fx.receipt.Status = enums.ReceiptStatusSettled

	receipt, err := fx.svc.Settle(context.Background(), fx.receipt.ID)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	if receipt.Status != enums.ReceiptStatusSettled {
		t.Fatalf("expected SETTLED, got %s", receipt.Status)
	}
	if fx.ledger.calls != 0 || fx.payout.calls != 0 || fx.chain.calls != 0 {
		t.Fatal("settled receipt must not re-run any step")
	}
}

func TestService_SettleRejectsUnverifiedReceipt(t *testing.T) {
	fx := newFixture(t)
	fx.receipt.Status = enums.ReceiptStatusPending

	_, err := fx.svc.Settle(context.Background(), fx.receipt.ID)
	if err == nil {
		t.Fatal("expected state conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestService_SettleWithdrawalFailureKeepsDebit(t *testing.T) {
	fx := newFixture(t)
	fx.payout.err = errors.New("payout gateway unavailable")

	_, err := fx.svc.Settle(context.Background(), fx.receipt.ID)
	if err == nil {
		t.Fatal("expected partial settlement error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePartialSettlement {
		t.Fatalf("expected PARTIAL_SETTLEMENT, got %v", err)
	}
	if fx.receipt.FailedStep == nil || *fx.receipt.FailedStep != enums.SettlementStepWithdrawal {
		t.Fatalf("expected withdrawal failed step, got %v", fx.receipt.FailedStep)
	}
	if fx.receipt.DebitedAt == nil {
		t.Fatal("debit progress must survive the failure")
	}
	if fx.chain.calls != 0 {
		t.Fatal("burn must not run after a withdrawal failure")
	}

	var partial bool
	for _, event := range fx.outbox.events {
		if event.EventType == enums.EventSettlementPartialFailure {
			partial = true
		}
	}
	if !partial {
		t.Fatal("expected settlement_partial_failure event")
	}
}

func TestService_SettleResumeSkipsCompletedSteps(t *testing.T) {
	fx := newFixture(t)
	fx.payout.err = errors.New("payout gateway unavailable")

	if _, err := fx.svc.Settle(context.Background(), fx.receipt.ID); err == nil {
		t.Fatal("expected first attempt to fail")
	}
	debits := fx.ledger.calls

	fx.payout.err = nil
	receipt, err := fx.svc.Settle(context.Background(), fx.receipt.ID)
	if err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if receipt.Status != enums.ReceiptStatusSettled {
		t.Fatalf("expected SETTLED after resume, got %s", receipt.Status)
	}
	if fx.ledger.calls != debits {
		t.Fatal("resume must not debit again")
	}
	if receipt.FailedStep != nil {
		t.Fatal("failed step must clear on success")
	}
	if fx.payout.calls != 2 || fx.chain.calls != 1 {
		t.Fatalf("unexpected call counts: payout=%d chain=%d", fx.payout.calls, fx.chain.calls)
	}
}

func TestService_SettleInsufficientFundsAbortsCleanly(t *testing.T) {
	fx := newFixture(t)
	fx.ledger.err = pkgerrors.New(pkgerrors.CodeInsufficientFunds, "vault balance below debit amount")

	_, err := fx.svc.Settle(context.Background(), fx.receipt.ID)
	if err == nil {
		t.Fatal("expected insufficient funds error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
	}
	// The debit transaction rolled back whole, so the receipt must not be
	// parked in the partial-failure queue.
	if fx.receipt.FailedStep != nil {
		t.Fatalf("expected no failed step, got %v", *fx.receipt.FailedStep)
	}
	if len(fx.outbox.events) != 0 {
		t.Fatalf("expected no events, got %d", len(fx.outbox.events))
	}
	if fx.payout.calls != 0 {
		t.Fatal("withdrawal must not run after a debit failure")
	}
}

func TestService_SettleTransientDebitFailureParksReceipt(t *testing.T) {
	fx := newFixture(t)
	fx.ledger.err = pkgerrors.New(pkgerrors.CodeDependency, "ledger unavailable")

	_, err := fx.svc.Settle(context.Background(), fx.receipt.ID)
	if err == nil {
		t.Fatal("expected partial settlement error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePartialSettlement {
		t.Fatalf("expected PARTIAL_SETTLEMENT, got %v", err)
	}
	if fx.receipt.FailedStep == nil || *fx.receipt.FailedStep != enums.SettlementStepDebit {
		t.Fatalf("expected debit failed step, got %v", fx.receipt.FailedStep)
	}
}

func TestService_SettleLockContention(t *testing.T) {
	fx := newFixture(t)
	fx.locks.held = true

	_, err := fx.svc.Settle(context.Background(), fx.receipt.ID)
	if err == nil {
		t.Fatal("expected lock conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if fx.ledger.calls != 0 {
		t.Fatal("no step may run without the lock")
	}
}

func TestService_ListPartialFailures(t *testing.T) {
	fx := newFixture(t)
	step := enums.SettlementStepBurn
	fx.repo.stuck = []models.ReceiptSubmission{{ID: uuid.New(), FailedStep: &step}}

	stuck, err := fx.svc.ListPartialFailures(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListPartialFailures error: %v", err)
	}
	if len(stuck) != 1 || stuck[0].FailedStep == nil {
		t.Fatalf("unexpected result: %+v", stuck)
	}
}
