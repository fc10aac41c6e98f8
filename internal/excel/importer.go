package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"github.com/xuri/excelize/v2"
)

// SentenceStore receives imported sentences
type SentenceStore interface {
	Create(ctx context.Context, s *models.Sentence) (bool, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath     string // Path to the Excel or CSV file
	KoreanColumn string // Column with the Korean sentence
	TopicColumn  string // Column with the topic
	LevelColumn  string // Column with the level
	SheetName    string // Name of the sheet to import
	StartRow     int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		KoreanColumn: "A",
		TopicColumn:  "B",
		LevelColumn:  "C",
		SheetName:    "Sheet1",
		StartRow:     2, // skip header
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int // already in the bank
	Errors         []string
}

// ImportSentences imports sentences from an Excel or CSV file
func ImportSentences(ctx context.Context, store SentenceStore, config ImportConfig) (*ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		file, err := os.Open(config.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		defer file.Close()
		return ImportCSV(ctx, store, file, config)
	}
	return importFromExcel(ctx, store, config)
}

func importFromExcel(ctx context.Context, store SentenceStore, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		if isBlank(row) {
			continue
		}
		result.TotalProcessed++

		s := &models.Sentence{
			Korean: cell(row, config.KoreanColumn),
			Topic:  cell(row, config.TopicColumn),
			Level:  cell(row, config.LevelColumn),
		}
		if err := addSentence(ctx, store, s, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}
	return result, nil
}

// ImportCSV reads "korean,topic,level" rows. A row holding only "[topic]"
// sets the topic for the rows that follow it.
func ImportCSV(ctx context.Context, store SentenceStore, r io.Reader, config ImportConfig) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	result := &ImportResult{Errors: make([]string, 0)}
	rowNum := 0
	currentTopic := ""

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}

		rowNum++
		if rowNum < config.StartRow || isBlank(row) {
			continue
		}

		first := strings.TrimSpace(row[0])
		if strings.HasPrefix(first, "[") && strings.HasSuffix(first, "]") {
			currentTopic = strings.TrimSpace(strings.Trim(first, "[]"))
			continue
		}

		result.TotalProcessed++

		s := &models.Sentence{Korean: first, Topic: currentTopic}
		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			s.Topic = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			s.Level = strings.TrimSpace(row[2])
		}

		if err := addSentence(ctx, store, s, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}
	return result, nil
}

func addSentence(ctx context.Context, store SentenceStore, s *models.Sentence, result *ImportResult) error {
	if s.Level == "" {
		s.Level = "intermediate"
	}
	created, err := store.Create(ctx, s)
	if err != nil {
		return err
	}
	if created {
		result.Created++
	} else {
		result.Skipped++
	}
	return nil
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
