package http

import (
	"errors"
	"fmt"
	"net/http"

	"tkpay/internal/core"
	"tkpay/internal/log"
	"tkpay/internal/services"
)

// handleAddTransaction records a payment for a recipient.
func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}

	params, errResp := s.readParams(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}

	name := params("name")
	amount, err := core.ParseAmount(params("amount"))
	if name == "" || err != nil {
		errorResponse(core.ErrInvalidTransaction).Write(w)
		return
	}

	tx, err := s.state.AddTransaction(r.Context(), name, amount)
	if err != nil {
		s.fail(w, r, "Add transaction failed", err)
		return
	}
	s.appMetrics.transactionsAdded.Add(1)

	s.respond(w, r, NewHTMXResponse().
		TriggerStateChanged().
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Added %s for %s", core.FormatCurrency(tx.Amount), tx.Name)))
}

// handleDeleteTransaction removes one payment by id. An unknown id is a no-op.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireDeleteOrPOST(r); errResp != nil {
		errResp.Write(w)
		return
	}

	params, errResp := s.readParams(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	id := params("id")
	if id == "" {
		BadRequestError("Missing transaction id").Write(w)
		return
	}

	found, err := s.state.DeleteTransaction(r.Context(), id)
	if err != nil {
		s.fail(w, r, "Delete transaction failed", err)
		return
	}

	b := NewHTMXResponse().TriggerStateChanged()
	if found {
		b.TriggerSuccessNotification("Transaction deleted")
	} else {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction already gone", log.FieldTransactionID, id)
	}
	s.respond(w, r, b)
}

// handleAddRecipient appends a name to the recipient list.
func (s *Server) handleAddRecipient(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}

	params, errResp := s.readParams(w, r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	name := params("name")

	if err := s.state.AddRecipient(r.Context(), name); err != nil {
		s.fail(w, r, "Add recipient failed", err)
		return
	}

	s.respond(w, r, NewHTMXResponse().
		TriggerStateChanged().
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("%s added", name)))
}

// handleSave snapshots the working log into history and then clears it. When
// only the remote write fails the snapshot is already in the local backup, so
// the log is still cleared and the failure is reported as 502.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}

	ctx := r.Context()
	dateKey, err := s.state.SaveCurrentTransactions(ctx)
	if err != nil && !errors.Is(err, services.ErrRemoteSync) {
		s.fail(w, r, "Save failed", err)
		return
	}
	s.appMetrics.snapshotsSaved.Add(1)

	if cerr := s.state.ClearCurrentTransactions(ctx); cerr != nil {
		s.fail(w, r, "Clear after save failed", cerr)
		return
	}

	if err != nil {
		s.appMetrics.remoteFailures.Add(1)
		log.FromContext(ctx).WarnContext(ctx, "Snapshot kept locally only",
			log.FieldDateKey, dateKey, log.FieldError, err)
		msg := fmt.Sprintf("Transactions for %s were saved on this device, but the remote history store could not be reached.", dateKey)
		BadGatewayError(msg).
			TriggerStateChanged().
			TriggerWarningNotification(msg).
			Write(w)
		return
	}

	s.respond(w, r, NewHTMXResponse().
		TriggerStateChanged().
		TriggerSuccessNotification(fmt.Sprintf("Transactions for %s have been saved successfully.", dateKey)))
}

// handleClearAll resets local data. Remote history is untouched and comes
// back on the next start.
func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}

	if err := s.state.ClearAllData(r.Context()); err != nil {
		s.fail(w, r, "Clear all failed", err)
		return
	}

	s.respond(w, r, NewHTMXResponse().
		TriggerStateChanged().
		TriggerSuccessNotification("All local data cleared"))
}

// readParams parses the body (form or JSON) and returns a lookup that falls
// back to the query string, where htmx puts DELETE parameters.
func (s *Server) readParams(w http.ResponseWriter, r *http.Request) (func(string) string, *HTMXResponseBuilder) {
	values, err := bodyValues(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrorResponse(http.StatusRequestEntityTooLarge, "Request is too large")
		}
		return nil, BadRequestError("Invalid request format")
	}
	query := r.URL.Query()
	return func(key string) string {
		if v := sanitizeInput(values.Get(key)); v != "" {
			return v
		}
		return sanitizeInput(query.Get(key))
	}, nil
}

// fail logs err and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	status := statusFor(err)
	switch {
	case status >= 500:
		if errors.Is(err, services.ErrRemoteSync) {
			s.appMetrics.remoteFailures.Add(1)
		}
		logger.ErrorContext(ctx, msg, log.FieldError, err, log.FieldPath, r.URL.Path)
	default:
		logger.InfoContext(ctx, msg, log.FieldError, err, log.FieldPath, r.URL.Path)
	}
	errorResponse(err).Write(w)
}

// respond writes b for htmx callers. Plain form posts are redirected back to
// the page on success so the app keeps working without JavaScript.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder) {
	if !isHTMX(r) && b.status < http.StatusBadRequest {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	b.Write(w)
}
