package farms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/geo"
)

// Service defines farm registry operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Farm, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Farm, error)
	List(ctx context.Context, status *enums.FarmStatus, limit int) ([]models.Farm, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.FarmStatus) (*models.Farm, error)
}

type service struct {
	repo Repository
}

// RegisterInput captures the data needed to onboard a farm.
type RegisterInput struct {
	OwnerID        uuid.UUID
	Name           string
	Address        string
	Latitude       float64
	Longitude      float64
	BankAccountRef string
	VaultAddress   string
	MonthlyTarget  decimal.Decimal
}

// NewService wires a farm service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("farms repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Farm, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm name required")
	}
	if !geo.ValidCoordinate(input.Latitude, input.Longitude) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm coordinates out of range")
	}
	if input.MonthlyTarget.Sign() < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "monthly target cannot be negative")
	}

	farm := &models.Farm{
		OwnerID:        input.OwnerID,
		Name:           strings.TrimSpace(input.Name),
		Address:        strings.TrimSpace(input.Address),
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		BankAccountRef: strings.TrimSpace(input.BankAccountRef),
		VaultAddress:   strings.TrimSpace(input.VaultAddress),
		Status:         enums.FarmStatusActive,
		VaultBalance:   decimal.Zero,
		MonthlyTarget:  input.MonthlyTarget,
		MonthlyRaised:  decimal.Zero,
		TrustScore:     models.InitialTrustScore,
	}
	if err := s.repo.Create(ctx, farm); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create farm")
	}
	return farm, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Farm, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farm id required")
	}
	farm, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farm not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farm")
	}
	return farm, nil
}

func (s *service) List(ctx context.Context, status *enums.FarmStatus, limit int) ([]models.Farm, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid farm status filter")
	}
	farms, err := s.repo.List(ctx, status, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list farms")
	}
	return farms, nil
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.FarmStatus) (*models.Farm, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid farm status")
	}
	farm, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if farm.Status == status {
		return farm, nil
	}
	farm.Status = status
	if err := s.repo.Save(ctx, farm); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save farm status")
	}
	return farm, nil
}
