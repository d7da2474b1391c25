package sheets

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"sverka/internal/timesheet"

	xls "github.com/extrame/xls"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Format is the detected container format of an uploaded workbook.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ErrEmptyWorkbook is returned when the payload has no sheets or no bytes.
var ErrEmptyWorkbook = errors.New("workbook is empty")

// DetectFormat sniffs the payload signature. Anything that is neither an
// OOXML zip nor an OLE compound file is treated as delimited text.
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS
	default:
		return FormatCSV
	}
}

// ReadMatrix loads the first sheet of a workbook without assuming any header.
// 1C exports come as xlsx, legacy xls in windows-1251, or CSV in either
// UTF-8 or windows-1251.
func ReadMatrix(data []byte) (timesheet.Matrix, error) {
	if len(data) == 0 {
		return nil, ErrEmptyWorkbook
	}

	format := DetectFormat(data)
	log.Debug().
		Str("format", string(format)).
		Int("bytes", len(data)).
		Msg("Reading workbook")

	switch format {
	case FormatXLSX:
		return readXLSX(data)
	case FormatXLS:
		return readXLS(data)
	default:
		return readCSV(data)
	}
}

func readXLSX(data []byte) (timesheet.Matrix, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return timesheet.Matrix(rows), nil
}

func readXLS(data []byte) (timesheet.Matrix, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "windows-1251")
	if err != nil {
		wb, err = xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("failed to open xls: %w", err)
		}
	}
	if wb == nil {
		return nil, errors.New("failed to open xls: no workbook stream")
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptyWorkbook
	}

	// ReadAllCells keeps rows without cells as nil entries, so row positions
	// match the sheet. The limit stops it after the first sheet.
	m := timesheet.Matrix(wb.ReadAllCells(int(sheet.MaxRow) + 1))
	if len(m) == 0 {
		return nil, ErrEmptyWorkbook
	}
	return m, nil
}

func readCSV(data []byte) (timesheet.Matrix, error) {
	var r io.Reader = bytes.NewReader(bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF")))
	if !utf8.Valid(data) {
		r = transform.NewReader(r, charmap.Windows1251.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var m timesheet.Matrix
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", len(m)+1, err)
		}
		m = append(m, record)
	}
	if len(m) == 0 {
		return nil, ErrEmptyWorkbook
	}
	return m, nil
}

// sniffDelimiter picks the most frequent of ';', tab and ',' in the first
// lines. 1C uses ';' by default.
func sniffDelimiter(data []byte) rune {
	head := string(data[:min(len(data), 4096)])
	best, bestCount := ';', 0
	for _, d := range []rune{';', '\t', ','} {
		if n := strings.Count(head, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
