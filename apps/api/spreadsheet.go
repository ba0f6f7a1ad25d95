package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LocationRecord is one input row: a place name and its engagement count.
type LocationRecord struct {
	Row         int
	Name        string
	Engagements float64
}

// readLocationRecords reads the first sheet of a workbook. There is no header row;
// column A holds the place name and column B the engagement count.
func readLocationRecords(r io.Reader) ([]LocationRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("no sheets found in workbook")
	}

	// Raw values, so a count formatted as a percentage or currency still reads as the stored number.
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	records := make([]LocationRecord, 0, len(rows))
	for idx, row := range rows {
		rowNumber := idx + 1
		cells := trimTrailingBlankCells(row)
		if len(cells) == 0 {
			continue
		}
		if len(cells) > 2 {
			return nil, fmt.Errorf("row %d: expected 2 columns, got %d", rowNumber, len(cells))
		}

		name := strings.TrimSpace(cells[0])
		if name == "" {
			return nil, fmt.Errorf("row %d: missing location name", rowNumber)
		}
		if len(cells) < 2 {
			return nil, fmt.Errorf("row %d: missing engagement count for %q", rowNumber, name)
		}

		engagements, err := parseEngagementCount(cells[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNumber, err)
		}

		records = append(records, LocationRecord{Row: rowNumber, Name: name, Engagements: engagements})
	}
	return records, nil
}

func trimTrailingBlankCells(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}

func parseEngagementCount(raw string) (float64, error) {
	value := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid engagement count %q", raw)
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("invalid engagement count %q", raw)
	}
	return parsed, nil
}
