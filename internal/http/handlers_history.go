package http

import (
	"fmt"
	"net/http"

	"tkpay/internal/core"
	"tkpay/internal/log"
)

// handleLoadHistory replaces the working log with a saved day.
func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}

	dateKey, errResp := s.readDateKey(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}

	if err := s.state.LoadTransactionsFromHistory(r.Context(), dateKey); err != nil {
		s.fail(w, r, "Load history failed", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "History loaded into working log",
		log.FieldDateKey, dateKey, log.FieldOperation, log.OpLoad)

	s.respond(w, r, NewHTMXResponse().
		TriggerStateChanged().
		TriggerHistoryLoaded(dateKey).
		TriggerSuccessNotification(fmt.Sprintf("Loaded transactions for %s", dateKey)))
}

// handleDeleteHistory removes a saved day from the remote store and then
// locally. A remote failure leaves everything in place and returns 502.
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireDeleteOrPOST(r); errResp != nil {
		errResp.Write(w)
		return
	}

	dateKey, errResp := s.readDateKey(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}

	if err := s.state.DeleteHistoryEntry(r.Context(), dateKey); err != nil {
		s.fail(w, r, "Delete history failed", err)
		return
	}

	s.respond(w, r, NewHTMXResponse().
		TriggerStateChanged().
		TriggerSuccessNotification(fmt.Sprintf("History for %s deleted", dateKey)))
}

func (s *Server) readDateKey(w http.ResponseWriter, r *http.Request) (string, *HTMXResponseBuilder) {
	params, errResp := s.readParams(w, r)
	if errResp != nil {
		return "", errResp
	}
	dateKey := params("date")
	if _, err := core.ParseDateKey(dateKey); err != nil {
		return "", errorResponse(err)
	}
	return dateKey, nil
}
