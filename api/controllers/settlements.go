package controllers

import (
	"net/http"

	"github.com/marondal/donation-engine/api/responses"
	"github.com/marondal/donation-engine/api/validators"
	"github.com/marondal/donation-engine/internal/settlement"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/logger"
	"github.com/marondal/donation-engine/pkg/pagination"
)

// ReceiptSettle runs the settlement orchestration for a verified receipt.
func ReceiptSettle(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		receiptID, err := pathUUID(r, "receiptID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settled, err := svc.Settle(r.Context(), receiptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, receiptResponseFromModel(settled))
	}
}

// SettlementPartialFailures lists settlements stuck on a failed step.
func SettlementPartialFailures(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListPartialFailures(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]receiptResponse, 0, len(list))
		for i := range list {
			items = append(items, receiptResponseFromModel(&list[i]))
		}
		responses.WriteSuccess(w, items)
	}
}
