package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "tkpay/internal/sheets"
)

// valuesAPI is the slice of the Sheets values service the ledger needs.
type valuesAPI interface {
	get(ctx context.Context, rng string) ([][]any, error)
	update(ctx context.Context, rng string, values [][]any) error
	clear(ctx context.Context, rng string) error
}

// Client mirrors history rows into one sheet of a spreadsheet.
type Client struct {
	values valuesAPI
	sheet  string
}

var _ ports.Ledger = (*Client)(nil)

// New creates a ledger client. With nil credentials the service uses
// Application Default Credentials.
func New(ctx context.Context, spreadsheetID, sheet string, credentialsJSON []byte) (*Client, error) {
	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	if len(credentialsJSON) > 0 {
		slog.InfoContext(ctx, "Using service account credentials", "credentials_size", len(credentialsJSON))
		opts = append(opts, goption.WithCredentialsJSON(credentialsJSON))
	} else {
		slog.InfoContext(ctx, "Using application default credentials")
	}
	return dial(ctx, spreadsheetID, sheet, opts...)
}

func dial(ctx context.Context, spreadsheetID, sheet string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return nil, errors.New("missing sheet name")
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(sheetValues{svc: svc, spreadsheetID: spreadsheetID}, sheet), nil
}

func newClient(values valuesAPI, sheet string) *Client {
	return &Client{values: values, sheet: sheet}
}

func (c *Client) columns() string {
	return fmt.Sprintf("%s!A:D", c.sheet)
}

func (c *Client) rowRange(n int) string {
	return fmt.Sprintf("%s!A%d:D%d", c.sheet, n, n)
}

// Upsert overwrites the row for row.Date or writes it into the first free row.
func (c *Client) Upsert(ctx context.Context, row ports.LedgerRow) error {
	values, err := c.values.get(ctx, c.columns())
	if err != nil {
		return fmt.Errorf("read %s: %w", c.columns(), err)
	}

	if len(values) == 0 {
		if err := c.values.update(ctx, c.rowRange(1), [][]any{headerRow()}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		values = [][]any{headerRow()}
	}

	n := findRow(values, row.Date)
	if n == 0 {
		n = freeRow(values)
	}
	if err := c.values.update(ctx, c.rowRange(n), [][]any{formatRow(row)}); err != nil {
		return fmt.Errorf("update %s: %w", c.rowRange(n), err)
	}
	return nil
}

// Clear blanks the row for date, leaving it free for reuse.
func (c *Client) Clear(ctx context.Context, date string) error {
	values, err := c.values.get(ctx, c.columns())
	if err != nil {
		return fmt.Errorf("read %s: %w", c.columns(), err)
	}
	n := findRow(values, date)
	if n == 0 {
		return nil
	}
	if err := c.values.clear(ctx, c.rowRange(n)); err != nil {
		return fmt.Errorf("clear %s: %w", c.rowRange(n), err)
	}
	return nil
}

func (c *Client) Rows(ctx context.Context) ([]ports.LedgerRow, error) {
	values, err := c.values.get(ctx, c.columns())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.columns(), err)
	}
	return parseLedger(values), nil
}

// sheetValues adapts the generated Sheets client to valuesAPI.
type sheetValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s sheetValues) get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s sheetValues) update(ctx context.Context, rng string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s sheetValues) clear(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}
