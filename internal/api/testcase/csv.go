package testcase

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wzyjerry/llm-arena/internal/model"
)

var errMissingColumns = errors.New("CSV header must contain userMessage and expectedOutput columns")

// headerIndex maps normalized header names to their column.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.TrimPrefix(key, "\ufeff")
		key = strings.ReplaceAll(key, "_", "")
		idx[key] = i
	}
	return idx
}

// parseCSV reads test cases from a CSV with a userMessage, expectedOutput
// and optional metrics header. Metrics are separated by '|' or ';'. Bad
// rows are reported in the validation info and skipped.
func parseCSV(r io.Reader) ([]model.TestCaseCreate, model.CSVValidationInfo, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, model.CSVValidationInfo{}, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	if len(records) < 2 {
		return nil, model.CSVValidationInfo{}, fmt.Errorf("%w: CSV file must have at least a header row and one data row", model.ErrInvalidRequest)
	}

	info := model.CSVValidationInfo{
		TotalRows:   len(records) - 1,
		Headers:     records[0],
		InvalidRows: []model.CSVRowError{},
	}

	idx := headerIndex(records[0])
	msgCol, ok1 := idx["usermessage"]
	expCol, ok2 := idx["expectedoutput"]
	if !ok1 || !ok2 {
		return nil, info, fmt.Errorf("%w: %v", model.ErrInvalidRequest, errMissingColumns)
	}
	metricsCol, hasMetrics := idx["metrics"]

	var cases []model.TestCaseCreate
	for i, row := range records[1:] {
		line := i + 2
		if isEmptyRow(row) {
			info.EmptyRows++
			continue
		}

		tc, err := rowToTestCase(row, msgCol, expCol, metricsCol, hasMetrics)
		if err != nil {
			info.InvalidRows = append(info.InvalidRows, model.CSVRowError{
				Row:   line,
				Data:  row,
				Error: err.Error(),
			})
			continue
		}
		cases = append(cases, tc)
		info.ValidRows++
	}

	return cases, info, nil
}

func rowToTestCase(row []string, msgCol, expCol, metricsCol int, hasMetrics bool) (model.TestCaseCreate, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	tc := model.TestCaseCreate{
		UserMessage:    cell(msgCol),
		ExpectedOutput: cell(expCol),
	}
	if tc.UserMessage == "" {
		return tc, errors.New("userMessage is empty")
	}
	if tc.ExpectedOutput == "" {
		return tc, errors.New("expectedOutput is empty")
	}

	if hasMetrics {
		raw := strings.FieldsFunc(cell(metricsCol), func(r rune) bool { return r == '|' || r == ';' })
		for _, m := range raw {
			kind := model.MetricKind(strings.ToUpper(strings.TrimSpace(m)))
			if kind == "" {
				continue
			}
			if !kind.Valid() {
				return tc, fmt.Errorf("unknown metric %q", m)
			}
			tc.Metrics = append(tc.Metrics, kind)
		}
	}
	return tc, nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
