package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tkpay/internal/core"
	"tkpay/internal/invoice"
	"tkpay/internal/log"
)

// handleInvoice renders the receipt of one recipient in the working log as a
// PNG download.
func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireMethod(r, http.MethodGet, http.MethodHead); errResp != nil {
		errResp.Write(w)
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	name := sanitizeInput(query.Get("name"))
	if name == "" {
		UnprocessableEntityError("Missing recipient name").Write(w)
		return
	}

	entries := core.EntriesFor(s.state.Transactions(), name)
	if len(entries) == 0 {
		NotFoundError(fmt.Sprintf("No transactions for %s", name)).Write(w)
		return
	}

	adj, err := ParseAdjustments(query)
	if err != nil {
		UnprocessableEntityError("Rate, old balance and joma must be non-negative numbers").Write(w)
		return
	}

	inv := invoice.Build(name, entries, adj, s.now().In(s.loc))
	data, err := s.renderer.PNG(inv)
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentInvoice).ErrorContext(ctx, "Invoice rendering failed",
			log.FieldRecipient, name,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		InternalServerError("Could not generate the invoice").Write(w)
		return
	}
	s.appMetrics.invoicesRendered.Add(1)

	log.FromContext(ctx).WithComponent(log.ComponentInvoice).InfoContext(ctx, "Invoice rendered",
		log.FieldRecipient, name,
		log.FieldCount, len(inv.Lines),
		log.FieldTotal, inv.TotalTK.String(),
		"detailed", inv.Detailed)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", contentDisposition(invoice.Filename(name)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}

// contentDisposition builds an attachment header with an ASCII fallback and
// the RFC 5987 UTF-8 filename for names outside ASCII.
func contentDisposition(filename string) string {
	fallback := strings.Map(func(r rune) rune {
		if r > 126 || r < 32 || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, filename)
	if fallback == filename {
		return fmt.Sprintf(`attachment; filename="%s"`, filename)
	}
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, url.PathEscape(filename))
}
