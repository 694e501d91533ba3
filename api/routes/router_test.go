package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/internal/ledger"
	"github.com/marondal/donation-engine/internal/photos"
	"github.com/marondal/donation-engine/internal/receipts"
	"github.com/marondal/donation-engine/internal/trustscore"
	pkgAuth "github.com/marondal/donation-engine/pkg/auth"
	"github.com/marondal/donation-engine/pkg/config"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	"github.com/marondal/donation-engine/pkg/logger"
	"github.com/marondal/donation-engine/pkg/pagination"
	"github.com/marondal/donation-engine/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubFarmsService struct {
	get func(ctx context.Context, id uuid.UUID) (*models.Farm, error)
}

func (s stubFarmsService) Register(ctx context.Context, input farms.RegisterInput) (*models.Farm, error) {
	panic("unimplemented")
}

func (s stubFarmsService) Get(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &models.Farm{ID: id}, nil
}

func (s stubFarmsService) List(ctx context.Context, status *enums.FarmStatus, limit int) ([]models.Farm, error) {
	return nil, nil
}

func (s stubFarmsService) SetStatus(ctx context.Context, id uuid.UUID, status enums.FarmStatus) (*models.Farm, error) {
	return &models.Farm{ID: id, Status: status}, nil
}

type stubLedgerService struct{}

func (stubLedgerService) RecordDonation(ctx context.Context, input ledger.RecordDonationInput) (*models.VaultLedgerEntry, error) {
	panic("unimplemented")
}

func (stubLedgerService) RecordDebit(ctx context.Context, tx *gorm.DB, input ledger.RecordDebitInput) (*models.VaultLedgerEntry, error) {
	panic("unimplemented")
}

func (stubLedgerService) History(ctx context.Context, input ledger.HistoryInput) (*ledger.HistoryPage, error) {
	return &ledger.HistoryPage{}, nil
}

type stubReceiptsService struct{}

func (stubReceiptsService) Submit(ctx context.Context, input receipts.SubmitInput) (*models.ReceiptSubmission, error) {
	panic("unimplemented")
}

func (stubReceiptsService) Get(ctx context.Context, id uuid.UUID) (*models.ReceiptSubmission, error) {
	return &models.ReceiptSubmission{ID: id}, nil
}

func (stubReceiptsService) ListByFarm(ctx context.Context, farmID uuid.UUID, status *enums.ReceiptStatus, limit int) ([]models.ReceiptSubmission, error) {
	return nil, nil
}

type stubVerificationService struct{}

func (stubVerificationService) Verify(ctx context.Context, receiptID uuid.UUID) (*models.ReceiptSubmission, error) {
	panic("unimplemented")
}

type stubSettlementService struct{}

func (stubSettlementService) Settle(ctx context.Context, receiptID uuid.UUID) (*models.ReceiptSubmission, error) {
	panic("unimplemented")
}

func (stubSettlementService) ListPartialFailures(ctx context.Context, limit int) ([]models.ReceiptSubmission, error) {
	return nil, nil
}

type stubPhotosService struct{}

func (stubPhotosService) SubmitBatch(ctx context.Context, input photos.SubmitBatchInput) (*photos.BatchStatus, error) {
	panic("unimplemented")
}

func (stubPhotosService) GetBatch(ctx context.Context, farmID uuid.UUID, month time.Time) (*photos.BatchStatus, error) {
	return &photos.BatchStatus{FarmID: farmID, Month: month}, nil
}

func (stubPhotosService) PostMissingUploadPenalty(ctx context.Context, farmID uuid.UUID, month time.Time) (*models.TrustScoreEvent, error) {
	return nil, nil
}

type stubTrustScoreService struct{}

func (stubTrustScoreService) Apply(ctx context.Context, input trustscore.ApplyInput) (*models.TrustScoreEvent, error) {
	panic("unimplemented")
}

func (stubTrustScoreService) ApplyTx(ctx context.Context, tx *gorm.DB, input trustscore.ApplyInput) (*models.TrustScoreEvent, error) {
	panic("unimplemented")
}

func (stubTrustScoreService) History(ctx context.Context, farmID uuid.UUID, window pagination.Window, limit int) ([]models.TrustScoreEvent, error) {
	return nil, nil
}

func (stubTrustScoreService) MonthlyAverage(ctx context.Context, farmID uuid.UUID, month time.Time) (*float64, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:   config.AppConfig{Env: "test", Port: "0"},
		Token: config.TokenConfig{KRWRate: "100"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		nil,
		Services{
			Farms:        stubFarmsService{},
			Ledger:       stubLedgerService{},
			Receipts:     stubReceiptsService{},
			Verification: stubVerificationService{},
			Settlement:   stubSettlementService{},
			Photos:       stubPhotosService{},
			TrustScore:   stubTrustScoreService{},
		},
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	farmID := uuid.New()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		FarmerID: uuid.New(),
		FarmID:   &farmID,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestProtectedRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/farms", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestProtectedRoutesSucceedWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/farms", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleFarmer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for farm list got %d", resp.Code)
	}
}

func TestFarmStatusRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	target := "/api/v1/farms/" + uuid.NewString() + "/status"

	farmer := httptest.NewRequest(http.MethodPatch, target, nil)
	farmer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleFarmer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, farmer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for farmer got %d", resp.Code)
	}
}

func TestPartialFailuresRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	farmer := httptest.NewRequest(http.MethodGet, "/api/v1/settlements/partial-failures", nil)
	farmer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleFarmer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, farmer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for farmer got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/settlements/partial-failures", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
	var payload struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse liveness response: %v", err)
	}
	if payload.Data["status"] != "live" {
		t.Fatalf("expected live status got %q", payload.Data["status"])
	}
}

func TestReceiptGetByID(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	receiptID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/receipts/"+receiptID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleFarmer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for receipt get got %d", resp.Code)
	}
	var payload struct {
		Data struct {
			ID uuid.UUID `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse receipt response: %v", err)
	}
	if payload.Data.ID != receiptID {
		t.Fatalf("expected receipt %s got %s", receiptID, payload.Data.ID)
	}
}
