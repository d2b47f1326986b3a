// Package importer reads deck word lists from spreadsheets.
//
// The first column holds the Chinese text and the second its jyutping. Rows
// that fail validation are skipped and reported, not fatal.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"cantogame/internal/models"
	"cantogame/internal/validation"
)

// ErrNoWords is returned when a file yields no importable rows
var ErrNoWords = errors.New("no valid words found")

// Config defines where the words are read from
type Config struct {
	FilePath  string
	SheetName string // xlsx only; defaults to the first sheet
	StartRow  int    // 1-based; defaults to 2 to skip the header row
}

func (c Config) startRow() int {
	if c.StartRow <= 0 {
		return 2
	}
	return c.StartRow
}

// Result holds the outcome of parsing a file
type Result struct {
	Words          []models.Word
	TotalProcessed int
	Skipped        int
	Errors         []string
}

// DeckCreator stores a new deck with its words
type DeckCreator interface {
	CreateDeck(ctx context.Context, name, description string, createdBy *string, words []models.Word) (*models.Deck, []models.Word, error)
}

// Parse reads words from an .xlsx or .csv file, chosen by extension
func Parse(cfg Config) (*Result, error) {
	switch ext := strings.ToLower(filepath.Ext(cfg.FilePath)); ext {
	case ".csv":
		file, err := os.Open(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		defer file.Close()
		return ParseCSV(file, cfg)
	case ".xlsx", ".xlsm":
		return parseExcel(cfg)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

func parseExcel(cfg Config) (*Result, error) {
	f, err := excelize.OpenFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := cfg.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return parseRows(rows, cfg.startRow()), nil
}

// ParseCSV reads words from CSV data
func ParseCSV(r io.Reader, cfg Config) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return parseRows(rows, cfg.startRow()), nil
}

func parseRows(rows [][]string, startRow int) *Result {
	result := &Result{}
	seen := make(map[string]int)

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < startRow || blank(row) {
			continue
		}
		result.TotalProcessed++

		var text, jyutping string
		if len(row) > 0 {
			text = strings.TrimSpace(row[0])
		}
		if len(row) > 1 {
			jyutping = normalizeJyutping(row[1])
		}

		if err := validation.ValidateWord(text, jyutping); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		if first, dup := seen[text]; dup {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: duplicate of row %d", rowNum, first))
			continue
		}
		seen[text] = rowNum

		result.Words = append(result.Words, models.Word{Text: text, Jyutping: jyutping})
	}
	return result
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// normalizeJyutping lowercases and collapses whitespace between syllables
func normalizeJyutping(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ImportDeck parses cfg.FilePath and stores the words as a new deck
func ImportDeck(ctx context.Context, creator DeckCreator, name, description string, createdBy *string, cfg Config) (*models.Deck, *Result, error) {
	if err := validation.ValidateDeckName(name); err != nil {
		return nil, nil, err
	}

	result, err := Parse(cfg)
	if err != nil {
		return nil, nil, err
	}
	if len(result.Words) == 0 {
		return nil, result, ErrNoWords
	}

	deck, words, err := creator.CreateDeck(ctx, strings.TrimSpace(name), description, createdBy, result.Words)
	if err != nil {
		return nil, result, fmt.Errorf("failed to create deck: %w", err)
	}
	result.Words = words
	return deck, result, nil
}
