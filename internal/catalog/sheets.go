package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/traverseglobe/quotation-backend/pkg/config"
	pkgerrors "github.com/traverseglobe/quotation-backend/pkg/errors"
)

// SheetsProvider reads catalog rows from the Google Sheets values API using an
// API key (the sheet must be shared for link viewing).
type SheetsProvider struct {
	values  *sheets.SpreadsheetsValuesService
	sheetID string
	rng     string
	timeout time.Duration
	markup  float64
}

// NewSheetsProvider validates the sheet settings and builds the API client.
// Extra options are appended after the API key (tests point the endpoint at
// a local server).
func NewSheetsProvider(ctx context.Context, cfg config.SheetsConfig, markup float64, opts ...option.ClientOption) (*SheetsProvider, error) {
	if cfg.APIKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "google sheets api key not configured")
	}
	if cfg.SheetID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "google sheet id not configured")
	}
	rng := cfg.Range
	if rng == "" {
		rng = "Rayna_cost!A1:G1000"
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "create sheets client")
	}
	return &SheetsProvider{
		values:  srv.Spreadsheets.Values,
		sheetID: cfg.SheetID,
		rng:     rng,
		timeout: cfg.Timeout,
		markup:  markup,
	}, nil
}

func (p *SheetsProvider) Name() string { return "sheets" }

func (p *SheetsProvider) Catalog(ctx context.Context) (*Catalog, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.values.Get(p.sheetID, p.rng).Context(ctx).Do()
	if err != nil {
		return nil, sheetsError(err)
	}
	if len(resp.Values) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no data found in sheet; check that the tab exists and contains data")
	}
	return BuildCatalog(stringRows(resp.Values), p.markup), nil
}

func sheetsError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bad request; the api key may be restricted or the range invalid")
		case http.StatusForbidden:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "access denied; check api key and sheet permissions")
		case http.StatusNotFound:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sheet not found; check sheet id")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("sheets api error: %d", apiErr.Code))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch sheet values")
}

func stringRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				cells[j] = fmt.Sprint(cell)
			}
		}
		rows[i] = cells
	}
	return rows
}
