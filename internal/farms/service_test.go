package farms

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
)

type fakeRepository struct {
	createFn   func(ctx context.Context, farm *models.Farm) error
	findByIDFn func(ctx context.Context, id uuid.UUID) (*models.Farm, error)
	saveFn     func(ctx context.Context, farm *models.Farm) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, farm *models.Farm) error {
	if f.createFn != nil {
		return f.createFn(ctx, farm)
	}
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeRepository) List(ctx context.Context, status *enums.FarmStatus, limit int) ([]models.Farm, error) {
	return nil, nil
}

func (f *fakeRepository) Save(ctx context.Context, farm *models.Farm) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, farm)
	}
	return nil
}

func TestService_Register(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var created *models.Farm
	repo.createFn = func(ctx context.Context, farm *models.Farm) error {
		created = farm
		return nil
	}

	input := RegisterInput{
		OwnerID:        uuid.New(),
		Name:           "  제주 은퇴마 목장  ",
		Address:        "제주특별자치도 제주시",
		Latitude:       33.4996,
		Longitude:      126.5312,
		BankAccountRef: "bank-ref-1",
		VaultAddress:   "0xvault",
		MonthlyTarget:  decimal.NewFromInt(5000),
	}

	farm, err := svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if created == nil {
		t.Fatal("expected farm to be created")
	}
	if farm.Name != "제주 은퇴마 목장" {
		t.Fatalf("name not trimmed: %q", farm.Name)
	}
	if farm.Status != enums.FarmStatusActive {
		t.Fatalf("expected active status, got %s", farm.Status)
	}
	if farm.TrustScore != models.InitialTrustScore {
		t.Fatalf("expected initial trust score %d, got %d", models.InitialTrustScore, farm.TrustScore)
	}
	if !farm.VaultBalance.IsZero() {
		t.Fatalf("expected zero opening balance, got %s", farm.VaultBalance)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	valid := RegisterInput{
		OwnerID:   uuid.New(),
		Name:      "목장",
		Latitude:  33.5,
		Longitude: 126.5,
	}

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{name: "missing owner", mutate: func(in *RegisterInput) { in.OwnerID = uuid.Nil }},
		{name: "blank name", mutate: func(in *RegisterInput) { in.Name = "   " }},
		{name: "latitude out of range", mutate: func(in *RegisterInput) { in.Latitude = 91 }},
		{name: "longitude out of range", mutate: func(in *RegisterInput) { in.Longitude = -181 }},
		{name: "negative target", mutate: func(in *RegisterInput) { in.MonthlyTarget = decimal.NewFromInt(-1) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			tc.mutate(&input)
			if _, err := svc.Register(context.Background(), input); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestService_GetNotFound(t *testing.T) {
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.New())
	if err == nil {
		t.Fatalf("expected not found error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestService_SetStatusNoopWhenUnchanged(t *testing.T) {
	existing := &models.Farm{ID: uuid.New(), Status: enums.FarmStatusActive}
	saved := false
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
			return existing, nil
		},
		saveFn: func(ctx context.Context, farm *models.Farm) error {
			saved = true
			return nil
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	if _, err := svc.SetStatus(context.Background(), existing.ID, enums.FarmStatusActive); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	if saved {
		t.Fatalf("unchanged status should not be saved")
	}

	farm, err := svc.SetStatus(context.Background(), existing.ID, enums.FarmStatusSuspended)
	if err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	if !saved || farm.Status != enums.FarmStatusSuspended {
		t.Fatalf("expected suspension to be saved")
	}
}

func TestService_GetDependencyError(t *testing.T) {
	repo := &fakeRepository{
		findByIDFn: func(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	if _, err := svc.Get(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected dependency error")
	}
}
