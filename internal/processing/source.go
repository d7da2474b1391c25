package processing

import (
	"context"

	"sverka/internal/sheets"
	"sverka/internal/timesheet"
)

// Source produces the grid of one timesheet.
type Source func(ctx context.Context) (timesheet.Matrix, error)

// FileSource downloads a workbook and decodes its first sheet. Download
// failures are classified separately from unreadable files.
func FileSource(fetch func(ctx context.Context) ([]byte, error)) Source {
	return func(ctx context.Context) (timesheet.Matrix, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, newRunError(KindSourceFetch, err)
		}
		m, err := sheets.ReadMatrix(data)
		if err != nil {
			return nil, newRunError(KindParse, err)
		}
		return m, nil
	}
}

// SheetSource reads a range of a Google Sheet.
func SheetSource(client *sheets.Client, spreadsheetID, range_ string) Source {
	return func(ctx context.Context) (timesheet.Matrix, error) {
		m, err := client.ReadMatrix(ctx, spreadsheetID, range_)
		if err != nil {
			return nil, newRunError(KindSourceFetch, err)
		}
		return m, nil
	}
}
