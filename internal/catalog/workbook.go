package catalog

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/traverseglobe/quotation-backend/pkg/errors"
)

// WorkbookProvider reads catalog rows from a local .xlsx export of the cost
// sheet. The file is reopened on every call so edits are picked up.
type WorkbookProvider struct {
	path   string
	sheet  string
	markup float64
}

func NewWorkbookProvider(path, sheet string, markup float64) (*WorkbookProvider, error) {
	if path == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "catalog workbook path not configured")
	}
	if sheet == "" {
		sheet = "Rayna_cost"
	}
	return &WorkbookProvider{path: path, sheet: sheet, markup: markup}, nil
}

func (p *WorkbookProvider) Name() string { return "workbook" }

func (p *WorkbookProvider) Catalog(_ context.Context) (*Catalog, error) {
	f, err := excelize.OpenFile(p.path)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open catalog workbook")
	}
	defer f.Close()

	rows, err := f.GetRows(p.sheet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read sheet %q", p.sheet))
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("sheet %q is empty", p.sheet))
	}
	return BuildCatalog(rows, p.markup), nil
}
