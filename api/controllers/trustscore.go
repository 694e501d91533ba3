package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/marondal/donation-engine/api/responses"
	"github.com/marondal/donation-engine/api/validators"
	"github.com/marondal/donation-engine/internal/trustscore"
	"github.com/marondal/donation-engine/pkg/db/models"
	"github.com/marondal/donation-engine/pkg/enums"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/logger"
	"github.com/marondal/donation-engine/pkg/pagination"
)

// TrustScoreHistory lists a farm's score adjustments, newest first.
func TrustScoreHistory(svc trustscore.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "trust score service unavailable"))
			return
		}

		farmID, err := pathUUID(r, "farmID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		from, err := validators.ParseQueryDate(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.History(r.Context(), farmID, pagination.Window{From: from, To: to}, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]trustScoreEventResponse, 0, len(events))
		for i := range events {
			items = append(items, trustScoreEventResponseFromModel(&events[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

type monthlyAverageResponse struct {
	FarmID  uuid.UUID `json:"farm_id"`
	Month   string    `json:"month"`
	Average *float64  `json:"average"`
}

// TrustScoreMonthlyAverage reports the mean score for one calendar month.
// Average is null when the farm recorded no events that month.
func TrustScoreMonthlyAverage(svc trustscore.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "trust score service unavailable"))
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

		average, err := svc.MonthlyAverage(r.Context(), farmID, month)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, monthlyAverageResponse{
			FarmID:  farmID,
			Month:   month.Format("2006-01"),
			Average: average,
		})
	}
}

type trustScoreEventResponse struct {
	ID         uuid.UUID           `json:"id"`
	FarmID     uuid.UUID           `json:"farm_id"`
	Category   enums.TrustCategory `json:"category"`
	Delta      int                 `json:"delta"`
	ScoreAfter int                 `json:"score_after"`
	SourceID   *uuid.UUID          `json:"source_id,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func trustScoreEventResponseFromModel(m *models.TrustScoreEvent) trustScoreEventResponse {
	return trustScoreEventResponse{
		ID:         m.ID,
		FarmID:     m.FarmID,
		Category:   m.Category,
		Delta:      m.Delta,
		ScoreAfter: m.ScoreAfter,
		SourceID:   m.SourceID,
		Reason:     m.Reason,
		OccurredAt: m.OccurredAt,
	}
}
