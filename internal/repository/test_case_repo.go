package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wzyjerry/llm-arena/internal/model"
)

// CreateTestCase creates a standalone test case
func CreateTestCase(in *model.TestCaseCreate) (*model.TestCase, error) {
	var tc *model.TestCase
	err := WithTx(func(tx *sql.Tx) error {
		var err error
		tc, err = insertTestCase(tx, in)
		return err
	})
	return tc, err
}

// CreateTestCases creates test cases in one transaction and links them to
// experimentID.
func CreateTestCases(experimentID string, in []model.TestCaseCreate) ([]model.TestCase, error) {
	created := make([]model.TestCase, 0, len(in))
	err := WithTx(func(tx *sql.Tx) error {
		for i := range in {
			tc, err := insertTestCase(tx, &in[i])
			if err != nil {
				return err
			}
			if err := linkTestCase(tx, experimentID, tc.ID); err != nil {
				return err
			}
			created = append(created, *tc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func insertTestCase(tx *sql.Tx, in *model.TestCaseCreate) (*model.TestCase, error) {
	metrics := in.Metrics
	if len(metrics) == 0 {
		metrics = model.DefaultTestCaseMetrics
	}
	for _, m := range metrics {
		if !m.Valid() {
			return nil, fmt.Errorf("%w: unknown metric %q", model.ErrInvalidRequest, m)
		}
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return nil, err
	}

	ts := now()
	tc := &model.TestCase{
		ID:             newID(),
		UserMessage:    in.UserMessage,
		ExpectedOutput: in.ExpectedOutput,
		Metrics:        metrics,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}

	query := `
		INSERT INTO test_cases (id, user_message, expected_output, metrics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query, tc.ID, tc.UserMessage, tc.ExpectedOutput, string(metricsJSON), ts, ts)
	if err != nil {
		return nil, err
	}
	return tc, nil
}

// LinkTestCase attaches an existing test case to an experiment. Linking
// twice is a no-op.
func LinkTestCase(experimentID, testCaseID string) error {
	return WithTx(func(tx *sql.Tx) error {
		return linkTestCase(tx, experimentID, testCaseID)
	})
}

func linkTestCase(tx *sql.Tx, experimentID, testCaseID string) error {
	var exists int
	err := tx.QueryRow(`SELECT 1 FROM experiments WHERE id = ?`, experimentID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("experiment %s: %w", experimentID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	err = tx.QueryRow(`SELECT 1 FROM test_cases WHERE id = ?`, testCaseID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("test case %s: %w", testCaseID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	query := `
		INSERT INTO experiment_test_cases (experiment_id, test_case_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(experiment_id, test_case_id) DO NOTHING
	`
	_, err = tx.Exec(query, experimentID, testCaseID, now())
	return err
}

// GetTestCaseByID returns a test case by ID
func GetTestCaseByID(id string) (*model.TestCase, error) {
	query := `
		SELECT id, user_message, expected_output, metrics, created_at, updated_at
		FROM test_cases WHERE id = ?
	`

	tc := &model.TestCase{}
	var metricsStr string
	err := db.QueryRow(query, id).Scan(
		&tc.ID, &tc.UserMessage, &tc.ExpectedOutput,
		&metricsStr, &tc.CreatedAt, &tc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metricsStr), &tc.Metrics); err != nil {
		return nil, fmt.Errorf("corrupt metrics for test case %s: %w", id, err)
	}
	return tc, nil
}

// GetTestCasesByExperiment returns the test cases linked to an experiment
// in the order they were linked
func GetTestCasesByExperiment(experimentID string) ([]model.TestCase, error) {
	query := `
		SELECT t.id, t.user_message, t.expected_output, t.metrics, t.created_at, t.updated_at
		FROM experiment_test_cases et JOIN test_cases t ON t.id = et.test_case_id
		WHERE et.experiment_id = ? ORDER BY et.created_at, t.created_at
	`

	rows, err := db.Query(query, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := []model.TestCase{}
	for rows.Next() {
		var tc model.TestCase
		var metricsStr string
		err := rows.Scan(
			&tc.ID, &tc.UserMessage, &tc.ExpectedOutput,
			&metricsStr, &tc.CreatedAt, &tc.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metricsStr), &tc.Metrics); err != nil {
			return nil, fmt.Errorf("corrupt metrics for test case %s: %w", tc.ID, err)
		}
		cases = append(cases, tc)
	}

	return cases, rows.Err()
}
