package sheets

import (
	"context"
	"fmt"

	"sverka/internal/timesheet"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Client reads timesheets that were shared as Google Sheets instead of
// being uploaded as a file.
type Client struct {
	service *sheets.Service
}

func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	service, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service: service,
	}, nil
}

func (c *Client) ReadSheet(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error) {
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, range_).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	return resp.Values, nil
}

// ReadMatrix fetches a range and converts it to the same positional grid
// produced for uploaded workbooks.
func (c *Client) ReadMatrix(ctx context.Context, spreadsheetID, range_ string) (timesheet.Matrix, error) {
	values, err := c.ReadSheet(ctx, spreadsheetID, range_)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrEmptyWorkbook
	}

	log.Debug().
		Str("spreadsheet_id", spreadsheetID).
		Str("range", range_).
		Int("rows", len(values)).
		Msg("Read timesheet from Google Sheets")

	return MatrixFromValues(values), nil
}

// MatrixFromValues stringifies API cell values. Ranges must start at A1 for
// row and column indexes to line up with the sheet.
func MatrixFromValues(values [][]interface{}) timesheet.Matrix {
	m := make(timesheet.Matrix, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		m[i] = cells
	}
	return m
}
