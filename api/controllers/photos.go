package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marondal/donation-engine/api/responses"
	"github.com/marondal/donation-engine/api/validators"
	"github.com/marondal/donation-engine/internal/photos"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/logger"
)

type photoRequest struct {
	Angle    string `json:"angle" validate:"required"`
	ImageRef string `json:"image_ref" validate:"required"`
}

type photoBatchRequest struct {
	Month  string         `json:"month" validate:"required"`
	Photos []photoRequest `json:"photos" validate:"required,min=1,max=4,dive"`
}

func (r photoBatchRequest) toInput(farmID uuid.UUID) (photos.SubmitBatchInput, error) {
	month, err := time.ParseInLocation("2006-01", strings.TrimSpace(r.Month), time.UTC)
	if err != nil {
		return photos.SubmitBatchInput{}, pkgerrors.New(pkgerrors.CodeValidation, "month must be formatted YYYY-MM")
	}

	batch := make([]photos.PhotoInput, 0, len(r.Photos))
	for _, photo := range r.Photos {
		angle, parseErr := enums.ParsePhotoAngle(strings.TrimSpace(photo.Angle))
		if parseErr != nil {
			return photos.SubmitBatchInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid photo angle")
		}
		batch = append(batch, photos.PhotoInput{
			Angle:    angle,
			ImageRef: strings.TrimSpace(photo.ImageRef),
		})
	}

	return photos.SubmitBatchInput{
		FarmID: farmID,
		Month:  month,
		Photos: batch,
	}, nil
}

// PhotoBatchSubmit records a monthly condition-photo batch for a farm.
func PhotoBatchSubmit(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photo service unavailable"))
			return
		}

		farmID, err := pathUUID(r, "farmID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload photoBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(farmID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.SubmitBatch(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, batchStatusResponseFromStatus(status))
	}
}

// PhotoBatchGet reports a farm's batch completeness for one month.
func PhotoBatchGet(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photo service unavailable"))
			return
		}

		farmID, err := pathUUID(r, "farmID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		month, err := validators.ParseQueryMonth(r, "month")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.GetBatch(r.Context(), farmID, month)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, batchStatusResponseFromStatus(status))
	}
}

type photoPenaltyRequest struct {
	Month string `json:"month" validate:"required"`
}

// PhotoPenaltyPost applies the missing-upload penalty for a closed month.
func PhotoPenaltyPost(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photo service unavailable"))
			return
		}

		farmID, err := pathUUID(r, "farmID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload photoPenaltyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		month, err := time.ParseInLocation("2006-01", strings.TrimSpace(payload.Month), time.UTC)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "month must be formatted YYYY-MM"))
			return
		}

		event, err := svc.PostMissingUploadPenalty(r.Context(), farmID, month)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if event == nil {
			responses.WriteSuccess(w, map[string]string{"status": "complete"})
			return
		}
		responses.WriteSuccess(w, trustScoreEventResponseFromModel(event))
	}
}

type conditionPhotoResponse struct {
	ID             uuid.UUID        `json:"id"`
	Angle          enums.PhotoAngle `json:"angle"`
	ImageRef       string           `json:"image_ref"`
	TakenAt        *time.Time       `json:"taken_at,omitempty"`
	Latitude       *float64         `json:"latitude,omitempty"`
	Longitude      *float64         `json:"longitude,omitempty"`
	DistanceMeters *float64         `json:"distance_meters,omitempty"`
	Valid          bool             `json:"valid"`
	RejectReason   *string          `json:"reject_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

type batchStatusResponse struct {
	FarmID         uuid.UUID                `json:"farm_id"`
	Month          string                   `json:"month"`
	Photos         []conditionPhotoResponse `json:"photos"`
	ValidAngles    []enums.PhotoAngle       `json:"valid_angles"`
	MissingAngles  []enums.PhotoAngle       `json:"missing_angles"`
	FullyValidated bool                     `json:"fully_validated"`
}

func batchStatusResponseFromStatus(s *photos.BatchStatus) batchStatusResponse {
	items := make([]conditionPhotoResponse, 0, len(s.Photos))
	for i := range s.Photos {
		items = append(items, conditionPhotoResponseFromModel(&s.Photos[i]))
	}

	return batchStatusResponse{
		FarmID:         s.FarmID,
		Month:          s.Month.Format("2006-01"),
		Photos:         items,
		ValidAngles:    s.ValidAngles,
		MissingAngles:  s.MissingAngles,
		FullyValidated: s.FullyValidated,
	}
}

func conditionPhotoResponseFromModel(m *models.ConditionPhoto) conditionPhotoResponse {
	return conditionPhotoResponse{
		ID:             m.ID,
		Angle:          m.Angle,
		ImageRef:       m.ImageRef,
		TakenAt:        m.TakenAt,
		Latitude:       m.Latitude,
		Longitude:      m.Longitude,
		DistanceMeters: m.DistanceMeters,
		Valid:          m.Valid,
		RejectReason:   m.RejectReason,
		CreatedAt:      m.CreatedAt,
	}
}
