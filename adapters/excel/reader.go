package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"echostrata/internal/logging"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// RawRowData represents one data row as header → trimmed cell text
type RawRowData map[string]string

// SheetData is a header row plus the data rows below it
type SheetData struct {
	Headers []string
	Rows    []RawRowData
}

// HasColumns returns the names in want missing from the headers
func (d *SheetData) HasColumns(want ...string) []string {
	present := make(map[string]bool, len(d.Headers))
	for _, h := range d.Headers {
		present[h] = true
	}
	var missing []string
	for _, w := range want {
		if !present[w] {
			missing = append(missing, w)
		}
	}
	return missing
}

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *zap.Logger
}

// NewDataReader creates a reader for an xlsx sheet or a csv file. An empty
// sheet name reads the workbook's first sheet.
func NewDataReader(filePath, sheet string, logger *zap.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileType,
		sheet:    sheet,
		logger:   logging.OrNop(logger).Named("excel"),
	}
}

// ReadData reads the file into rows keyed by header
func (r *DataReader) ReadData() (*SheetData, error) {
	r.logger.Debug("reading file", zap.String("type", r.fileType), zap.String("path", r.filePath))

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

func (r *DataReader) readExcelData() (*SheetData, error) {
	start := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found in %s", sheet, r.filePath)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	r.logger.Debug("sheet read",
		zap.String("sheet", sheet),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)))

	if len(rows) < 1 {
		return nil, fmt.Errorf("sheet %q has no header row", sheet)
	}
	return r.processRows(rows), nil
}

func (r *DataReader) readCSVData() (*SheetData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("CSV file has no header row")
	}
	return r.processRows(rows), nil
}

// processRows keys every data row by the trimmed header names. Short rows
// leave trailing columns blank.
func (r *DataReader) processRows(rows [][]string) *SheetData {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		empty := true
		for j, cell := range row {
			if j < len(headers) {
				v := strings.TrimSpace(cell)
				rowData[headers[j]] = v
				if v != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}
		dataRows = append(dataRows, rowData)
	}

	r.logger.Debug("file processed", zap.Int("columns", len(headers)), zap.Int("rows", len(dataRows)))
	return &SheetData{Headers: headers, Rows: dataRows}
}
