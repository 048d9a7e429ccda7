// Package sheets wraps the Google Sheets API for the ledger writer: open a
// spreadsheet by id, ensure a worksheet exists with a header row, read the
// full grid, append a row. Rate-limit responses (HTTP 429) are surfaced
// through IsRateLimited so callers can back off and retry.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/AlleexMartinsT/Botana/internal/logger"
)

// Service handles Google Sheets operations
type Service struct {
	api *sheets.Service
	log zerolog.Logger

	// Opened spreadsheet handles, cached for the process lifetime. Only one
	// cycle runs at a time, so plain map access is fine.
	opened map[string]*Spreadsheet
}

// Spreadsheet is a cached handle to one remote spreadsheet.
type Spreadsheet struct {
	svc   *Service
	id    string
	title string
}

// NewService creates a new Google Sheets service from service-account
// credentials: credsPath when given, otherwise the GOOGLE_CREDENTIALS
// inline JSON environment variable.
func NewService(ctx context.Context, credsPath string) (*Service, error) {
	const op = "NewService"

	log := logger.WithComponent("sheets")

	var creds []byte
	var err error
	if credsPath != "" {
		creds, err = os.ReadFile(credsPath)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: no sheets credentials configured", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	api, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		api:    api,
		log:    log,
		opened: make(map[string]*Spreadsheet),
	}, nil
}

// Open returns a handle to the spreadsheet with the given id, reusing a
// cached handle when the spreadsheet was opened before.
func (s *Service) Open(ctx context.Context, spreadsheetID string) (*Spreadsheet, error) {
	const op = "Open"

	if sp, ok := s.opened[spreadsheetID]; ok {
		return sp, nil
	}

	meta, err := s.api.Spreadsheets.Get(spreadsheetID).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open spreadsheet %s: %w", op, spreadsheetID, err)
	}

	sp := &Spreadsheet{svc: s, id: spreadsheetID, title: meta.Properties.Title}
	s.opened[spreadsheetID] = sp

	s.log.Debug().Str("spreadsheet_id", spreadsheetID).Str("title", sp.title).Msg("Opened spreadsheet")
	return sp, nil
}

// Title returns the spreadsheet's display title.
func (sp *Spreadsheet) Title() string {
	return sp.title
}

// EnsureWorksheet makes sure a worksheet with the given title exists,
// creating it seeded with the header row when absent. Reports whether the
// worksheet was newly created.
func (sp *Spreadsheet) EnsureWorksheet(ctx context.Context, title string, header []interface{}) (bool, error) {
	const op = "EnsureWorksheet"

	meta, err := sp.svc.api.Spreadsheets.Get(sp.id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}
	for _, sheet := range meta.Sheets {
		if sheet.Properties.Title == title {
			return false, nil
		}
	}

	sp.svc.log.Info().Str("sheet", title).Msg("Creating new worksheet")

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			}},
		},
	}
	if _, err := sp.svc.api.Spreadsheets.BatchUpdate(sp.id, batchUpdateReq).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("%s: failed to create worksheet: %w", op, err)
	}

	valueRange := &sheets.ValueRange{Values: [][]interface{}{header}}
	_, err = sp.svc.api.Spreadsheets.Values.Update(sp.id, title+"!A1", valueRange).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("%s: failed to write header row: %w", op, err)
	}

	return true, nil
}

// ReadAll returns every row of the worksheet as a string grid.
func (sp *Spreadsheet) ReadAll(ctx context.Context, title string) ([][]string, error) {
	const op = "ReadAll"

	resp, err := sp.svc.api.Spreadsheets.Values.Get(sp.id, title).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read worksheet %s: %w", op, title, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRow appends one row with USER_ENTERED input interpretation, so the
// spreadsheet applies its own date and currency formatting.
func (sp *Spreadsheet) AppendRow(ctx context.Context, title string, values []interface{}) error {
	const op = "AppendRow"

	valueRange := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := sp.svc.api.Spreadsheets.Values.Append(sp.id, title, valueRange).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append row to %s: %w", op, title, err)
	}
	return nil
}

// IsRateLimited reports whether err is an HTTP 429 from the Sheets API.
func IsRateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 429
}
