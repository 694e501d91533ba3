package controllers

import (
	"net/http"
	"strings"

	"github.com/marondal/donation-engine/api/responses"
	"github.com/marondal/donation-engine/api/validators"
	"github.com/marondal/donation-engine/internal/ledger"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/logger"
	"github.com/marondal/donation-engine/pkg/pagination"
)

type ledgerHistoryResponse struct {
	Entries    []ledgerEntryResponse `json:"entries"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// FarmLedgerHistory pages a farm's vault ledger, newest first.
func FarmLedgerHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
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

		page, err := svc.History(r.Context(), ledger.HistoryInput{
			FarmID: farmID,
			Window: pagination.Window{From: from, To: to},
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := ledgerHistoryResponse{
			Entries:    make([]ledgerEntryResponse, 0, len(page.Entries)),
			NextCursor: page.NextCursor,
		}
		for i := range page.Entries {
			resp.Entries = append(resp.Entries, ledgerEntryResponseFromModel(&page.Entries[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}
