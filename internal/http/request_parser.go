package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tkpay/internal/core"
	"tkpay/internal/invoice"
)

// maxBodyBytes bounds every form or JSON body the app accepts.
const maxBodyBytes = 64 << 10

// ParseAdjustments reads the optional invoice inputs from a query. A rate
// made only of digits has not been through the browser's rate mask yet and
// gets the same masking, so "1234" means 12.34. Blank fields are zero.
func ParseAdjustments(query url.Values) (invoice.Adjustments, error) {
	var adj invoice.Adjustments
	var err error

	rate := strings.TrimSpace(query.Get("rate"))
	if !strings.ContainsAny(rate, ".,") {
		rate = invoice.NormalizeRateInput(rate)
	}
	if adj.Rate, err = core.ParseOptionalAmount(rate); err != nil {
		return invoice.Adjustments{}, fmt.Errorf("rate: %w", err)
	}
	if adj.OldBalance, err = core.ParseOptionalAmount(query.Get("old_balance")); err != nil {
		return invoice.Adjustments{}, fmt.Errorf("old balance: %w", err)
	}
	if adj.Joma, err = core.ParseOptionalAmount(query.Get("joma")); err != nil {
		return invoice.Adjustments{}, fmt.Errorf("joma: %w", err)
	}
	return adj, nil
}

// bodyValues reads a form-encoded or JSON object body into url.Values.
// Bodies over maxBodyBytes fail with *http.MaxBytesError.
func bodyValues(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	if r.Body == nil {
		return url.Values{}, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return url.Values{}, nil
	}
	if body[0] != '{' {
		return url.ParseQuery(string(body))
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	values := make(url.Values, len(fields))
	for k, v := range fields {
		values.Set(k, jsonScalar(v))
	}
	return values, nil
}

// jsonScalar renders a decoded JSON scalar as form text; objects and arrays
// read as empty.
func jsonScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod returns a 405 reply unless r uses one of methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST admits htmx hx-delete as well as plain form posts.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}
