package domain

import (
	"context"
	"errors"
	"io"
)

type Service interface {
	// Import creates one vehicle per data row of the first sheet.
	Import(ctx context.Context, r io.Reader) (*Report, error)
}

// RowError reports a row that could not be imported. Row is the worksheet
// row number, so the first data row under the header is 2.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type Report struct {
	TotalRows  int        `json:"totalRows"`
	Imported   int        `json:"imported"`
	VehicleIDs []string   `json:"vehicleIds"`
	Errors     []RowError `json:"errors"`
}

var (
	ErrInvalidWorkbook = errors.New("invalid_workbook")
	ErrEmptyWorkbook   = errors.New("empty_workbook")
)
