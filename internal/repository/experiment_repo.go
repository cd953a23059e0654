package repository

import (
	"database/sql"
	"fmt"

	"github.com/wzyjerry/llm-arena/internal/model"
)

// CreateExperiment stores an experiment with its models and any test cases
// to link. Unknown model or test case ids fail the whole insert.
func CreateExperiment(in *model.ExperimentCreate) (*model.Experiment, error) {
	id := newID()
	err := WithTx(func(tx *sql.Tx) error {
		modelIDs, err := resolveModelIDs(tx, in.ModelIDs)
		if err != nil {
			return err
		}
		if len(modelIDs) == 0 {
			return fmt.Errorf("experiment needs at least one model: %w", ErrNotFound)
		}

		ts := now()
		query := `
			INSERT INTO experiments (id, name, system_prompt, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`
		if _, err := tx.Exec(query, id, in.Name, in.SystemPrompt, ts, ts); err != nil {
			return err
		}

		for i, modelID := range modelIDs {
			if _, err := tx.Exec(
				`INSERT INTO experiment_models (experiment_id, model_id, position) VALUES (?, ?, ?)`,
				id, modelID, i,
			); err != nil {
				return err
			}
		}

		for _, tcID := range in.TestCaseIDs {
			if err := linkTestCase(tx, id, tcID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetExperimentByID(id)
}

// GetAllExperiments returns all experiments, newest first
func GetAllExperiments() ([]model.Experiment, error) {
	query := `
		SELECT e.id, e.name, e.system_prompt, e.created_at, e.updated_at,
			(SELECT COUNT(*) FROM experiment_test_cases t WHERE t.experiment_id = e.id)
		FROM experiments e ORDER BY e.created_at DESC
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	experiments := []model.Experiment{}
	for rows.Next() {
		var exp model.Experiment
		err := rows.Scan(
			&exp.ID, &exp.Name, &exp.SystemPrompt,
			&exp.CreatedAt, &exp.UpdatedAt, &exp.TestCaseCount,
		)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range experiments {
		models, err := experimentModels(experiments[i].ID)
		if err != nil {
			return nil, err
		}
		experiments[i].Models = models
	}

	return experiments, nil
}

// GetExperimentByID returns an experiment with its models
func GetExperimentByID(id string) (*model.Experiment, error) {
	query := `
		SELECT e.id, e.name, e.system_prompt, e.created_at, e.updated_at,
			(SELECT COUNT(*) FROM experiment_test_cases t WHERE t.experiment_id = e.id)
		FROM experiments e WHERE e.id = ?
	`

	exp := &model.Experiment{}
	err := db.QueryRow(query, id).Scan(
		&exp.ID, &exp.Name, &exp.SystemPrompt,
		&exp.CreatedAt, &exp.UpdatedAt, &exp.TestCaseCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	exp.Models, err = experimentModels(id)
	if err != nil {
		return nil, err
	}
	return exp, nil
}

func experimentModels(experimentID string) ([]model.CatalogModel, error) {
	query := `
		SELECT m.id, m.value, m.label, m.category
		FROM experiment_models em JOIN models m ON m.id = em.model_id
		WHERE em.experiment_id = ? ORDER BY em.position
	`

	rows, err := db.Query(query, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	models := []model.CatalogModel{}
	for rows.Next() {
		var m model.CatalogModel
		if err := rows.Scan(&m.ID, &m.Value, &m.Label, &m.Category); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// DeleteExperiment deletes an experiment with its links and results.
// Test cases survive; they may belong to other experiments.
func DeleteExperiment(id string) (bool, error) {
	query := `DELETE FROM experiments WHERE id = ?`
	result, err := db.Exec(query, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// ExperimentExists reports whether an experiment with id is stored
func ExperimentExists(id string) (bool, error) {
	var exists int
	err := db.QueryRow(`SELECT 1 FROM experiments WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
