package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marondal/donation-engine/api/middleware"
	"github.com/marondal/donation-engine/api/responses"
	"github.com/marondal/donation-engine/api/validators"
	"github.com/marondal/donation-engine/internal/farms"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/logger"
	"github.com/marondal/donation-engine/pkg/money"
	"github.com/marondal/donation-engine/pkg/pagination"
)

type farmRegisterRequest struct {
	Name           string  `json:"name" validate:"required"`
	Address        string  `json:"address" validate:"required"`
	Latitude       float64 `json:"latitude" validate:"required,latitude"`
	Longitude      float64 `json:"longitude" validate:"required,longitude"`
	BankAccountRef string  `json:"bank_account_ref" validate:"required"`
	VaultAddress   string  `json:"vault_address" validate:"required"`
	MonthlyTarget  string  `json:"monthly_target"`
}

func (r farmRegisterRequest) toInput(ownerID uuid.UUID) (farms.RegisterInput, error) {
	target := decimal.Zero
	if strings.TrimSpace(r.MonthlyTarget) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(r.MonthlyTarget))
		if err != nil {
			return farms.RegisterInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid monthly_target")
		}
		target = parsed
	}

	return farms.RegisterInput{
		OwnerID:        ownerID,
		Name:           strings.TrimSpace(r.Name),
		Address:        strings.TrimSpace(r.Address),
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		BankAccountRef: strings.TrimSpace(r.BankAccountRef),
		VaultAddress:   strings.TrimSpace(r.VaultAddress),
		MonthlyTarget:  target,
	}, nil
}

// FarmRegister handles onboarding a farm for the authenticated farmer.
func FarmRegister(svc farms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "farm service unavailable"))
			return
		}

		ownerID, err := authenticatedFarmerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload farmRegisterRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Register(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, farmResponseFromModel(created))
	}
}

// FarmGet returns a single farm by id, with the vault balance stated in
// both MARON and its KRW equivalent.
func FarmGet(svc farms.Service, rate decimal.Decimal, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "farm service unavailable"))
			return
		}

		farmID, err := pathUUID(r, "farmID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		farm, err := svc.Get(r.Context(), farmID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, farmDetailResponse{
			farmResponse:    farmResponseFromModel(farm),
			VaultBalanceKRW: money.TokensToFiat(farm.VaultBalance, rate),
		})
	}
}

// FarmList returns farms, optionally filtered by status.
func FarmList(svc farms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "farm service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.FarmStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, parseErr := enums.ParseFarmStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid farm status"))
				return
			}
			status = &parsed
		}

		list, err := svc.List(r.Context(), status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]farmResponse, 0, len(list))
		for i := range list {
			items = append(items, farmResponseFromModel(&list[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

type farmStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// FarmSetStatus transitions a farm between active, suspended, and retired.
func FarmSetStatus(svc farms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "farm service unavailable"))
			return
		}

		farmID, err := pathUUID(r, "farmID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload farmStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseFarmStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid farm status"))
			return
		}

		updated, err := svc.SetStatus(r.Context(), farmID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, farmResponseFromModel(updated))
	}
}

type farmDetailResponse struct {
	farmResponse
	VaultBalanceKRW decimal.Decimal `json:"vault_balance_krw"`
}

type farmResponse struct {
	ID             uuid.UUID        `json:"id"`
	OwnerID        uuid.UUID        `json:"owner_id"`
	Name           string           `json:"name"`
	Address        string           `json:"address"`
	Latitude       float64          `json:"latitude"`
	Longitude      float64          `json:"longitude"`
	BankAccountRef string           `json:"bank_account_ref"`
	VaultAddress   string           `json:"vault_address"`
	Status         enums.FarmStatus `json:"status"`
	VaultBalance   decimal.Decimal  `json:"vault_balance"`
	MonthlyTarget  decimal.Decimal  `json:"monthly_target"`
	MonthlyRaised  decimal.Decimal  `json:"monthly_raised"`
	TrustScore     int              `json:"trust_score"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func farmResponseFromModel(m *models.Farm) farmResponse {
	return farmResponse{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		Name:           m.Name,
		Address:        m.Address,
		Latitude:       m.Latitude,
		Longitude:      m.Longitude,
		BankAccountRef: m.BankAccountRef,
		VaultAddress:   m.VaultAddress,
		Status:         m.Status,
		VaultBalance:   m.VaultBalance,
		MonthlyTarget:  m.MonthlyTarget,
		MonthlyRaised:  m.MonthlyRaised,
		TrustScore:     m.TrustScore,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func authenticatedFarmerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.FarmerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "farmer context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid farmer id")
	}
	return id, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, param)))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}
