// Package google appends expense rows to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// Header is the column layout written by ExportRows.
var Header = []any{"ID", "Date", "Amount", "Description", "Category", "Tag", "Payment method", "Payment detail", "Owner"}

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
}

// appendFunc writes values below the last row of rng and returns the number
// of rows the API reports as updated.
type appendFunc func(ctx context.Context, rng string, values [][]any) (int, error)

type Exporter struct {
	spreadsheetID string
	sheetName     string
	append        appendFunc
	logger        *log.Logger
}

var _ store.RowExporter = (*Exporter)(nil)

// NewExporter creates a Sheets service from service account credentials.
// Inline JSON takes precedence over the file.
func NewExporter(ctx context.Context, cfg Config, logger *log.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Expenses"
	}

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	e := &Exporter{
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger,
	}
	e.append = func(ctx context.Context, rng string, values [][]any) (int, error) {
		resp, err := svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return 0, err
		}
		if resp.Updates == nil {
			return len(values), nil
		}
		return int(resp.Updates.UpdatedRows), nil
	}
	return e, nil
}

func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	var credentialsJSON []byte

	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case cfg.ServiceAccountFile != "":
		data, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.DebugContext(ctx, "Read service account file", "path", cfg.ServiceAccountFile, "size", len(data))
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// ExportRows appends rows to the configured sheet. An empty slice is a
// no-op.
func (e *Exporter) ExportRows(ctx context.Context, rows []core.ExpenseRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if e.append == nil {
		return 0, errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:I", e.sheetName)
	n, err := e.append(ctx, rng, rowValues(rows))
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", rng, err)
	}
	e.logger.InfoContext(ctx, "Exported rows to sheet",
		"sheet", e.sheetName, log.FieldRowCount, n)
	return n, nil
}

func rowValues(rows []core.ExpenseRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{
			r.ID,
			r.Date,
			core.FormatAmount(r.Amount),
			r.Description,
			deref(r.Category),
			deref(r.Tag),
			deref(r.PaymentMethod),
			deref(r.PaymentDetail),
			r.Owner,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
