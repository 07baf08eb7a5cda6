// Package google exports bill rows to a Google Sheets spreadsheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"meterlog/internal/core"
	ports "meterlog/internal/sheets"
)

// Client maintains one worksheet per utility kind. Each bill occupies one
// row keyed by its id in column A, so re-syncing an edited bill rewrites
// the existing row instead of appending a duplicate.
type Client struct {
	svc              *gsheet.Service
	spreadsheetID    string
	waterSheet       string
	electricitySheet string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

var (
	_ ports.BillWriter  = (*Client)(nil)
	_ ports.BillDeleter = (*Client)(nil)
)

// New creates a Sheets client for the given spreadsheet. Credentials come
// from the environment: GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, waterSheet, electricitySheet string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:              svc,
		spreadsheetID:    spreadsheetID,
		waterSheet:       waterSheet,
		electricitySheet: electricitySheet,
		sheetIDs:         map[string]int64{},
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) sheetName(kind core.BillKind) (string, error) {
	switch kind {
	case core.Water:
		return c.waterSheet, nil
	case core.Electricity:
		return c.electricitySheet, nil
	default:
		return "", core.ErrInvalidKind
	}
}

// Upsert implements ports.BillWriter.
func (c *Client) Upsert(ctx context.Context, b core.Bill) (string, error) {
	if err := b.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet, err := c.sheetName(b.Kind)
	if err != nil {
		return "", err
	}

	row, err := c.findRow(ctx, sheet, b.ID)
	if err != nil {
		return "", err
	}
	if row == -1 {
		next, err := c.nextEmptyRow(ctx, sheet)
		if err != nil {
			return "", err
		}
		row = next
	}

	rng := fmt.Sprintf("%s!A%d:H%d", sheet, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{{
		b.ID,
		b.Month,
		b.PreviousReading,
		b.CurrentReading,
		b.Consumption,
		b.Rate,
		b.Amount,
		time.Now().UTC().Format(time.RFC3339),
	}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write bill row: %w", err)
	}

	slog.InfoContext(ctx, "Bill exported to sheet",
		"sheet", sheet, "row", row, "id", b.ID, "month", b.Month)
	return rng, nil
}

// Delete implements ports.BillDeleter. Deleting a row that is no longer
// present is not an error.
func (c *Client) Delete(ctx context.Context, kind core.BillKind, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet, err := c.sheetName(kind)
	if err != nil {
		return err
	}

	row, err := c.findRow(ctx, sheet, id)
	if err != nil {
		return err
	}
	if row == -1 {
		slog.WarnContext(ctx, "Bill row not found in sheet, skipping delete",
			"sheet", sheet, "id", id)
		return nil
	}

	sheetID, err := c.numericSheetID(ctx, sheet)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{
			Range: &gsheet.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "ROWS",
				StartIndex: int64(row - 1),
				EndIndex:   int64(row),
			},
		},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete bill row: %w", err)
	}

	slog.InfoContext(ctx, "Bill row deleted from sheet",
		"sheet", sheet, "row", row, "id", id)
	return nil
}

// findRow returns the 1-based row holding id in column A, or -1. Row 1 is
// reserved for the header.
func (c *Client) findRow(ctx context.Context, sheet, id string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read id column: %w", err)
	}
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if cell, ok := row[0].(string); ok && strings.TrimSpace(cell) == id {
			return i + 1, nil
		}
	}
	return -1, nil
}

func (c *Client) nextEmptyRow(ctx context.Context, sheet string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read id column: %w", err)
	}
	// Header occupies row 1 even when the sheet is otherwise empty.
	if len(resp.Values) == 0 {
		return 2, nil
	}
	return len(resp.Values) + 1, nil
}

// numericSheetID resolves a worksheet title to the numeric id required by
// structural batch requests. Resolved ids are cached for the client's
// lifetime.
func (c *Client) numericSheetID(ctx context.Context, sheet string) (int64, error) {
	c.mu.Lock()
	if id, ok := c.sheetIDs[sheet]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			c.mu.Lock()
			c.sheetIDs[sheet] = s.Properties.SheetId
			c.mu.Unlock()
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("worksheet %q not found in spreadsheet", sheet)
}
