package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wzyjerry/llm-arena/internal/model"
)

// CreateExperimentResult stores one model's result for a test case. The
// metrics map is filled so every known metric has a value.
func CreateExperimentResult(in *model.ExperimentResultCreate) (*model.ExperimentResult, error) {
	in.FillMetrics()

	result := &model.ExperimentResult{
		ID:                    newID(),
		ExperimentID:          in.ExperimentID,
		TestCaseID:            in.TestCaseID,
		ModelID:               in.ModelID,
		Response:              in.Response,
		ExactMatchScore:       in.ExactMatchScore,
		LLMMatchScore:         in.LLMMatchScore,
		CosineSimilarityScore: in.CosineSimilarityScore,
		Metrics:               in.Metrics,
		Timing:                in.Timing,
		Error:                 in.Error,
		CreatedAt:             now(),
	}

	metricsJSON, err := nullJSON(in.Metrics)
	if err != nil {
		return nil, err
	}
	timingJSON, err := nullJSON(in.Timing)
	if err != nil {
		return nil, err
	}

	err = WithTx(func(tx *sql.Tx) error {
		checks := []struct{ table, id string }{
			{"experiments", in.ExperimentID},
			{"test_cases", in.TestCaseID},
			{"models", in.ModelID},
		}
		for _, c := range checks {
			var exists int
			err := tx.QueryRow("SELECT 1 FROM "+c.table+" WHERE id = ?", c.id).Scan(&exists)
			if err == sql.ErrNoRows {
				return fmt.Errorf("%s %s: %w", c.table, c.id, ErrNotFound)
			}
			if err != nil {
				return err
			}
		}

		query := `
			INSERT INTO experiment_results (
				id, experiment_id, test_case_id, model_id, response,
				exact_match_score, llm_match_score, cosine_similarity_score,
				metrics, timing, error, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.Exec(query,
			result.ID, result.ExperimentID, result.TestCaseID, result.ModelID, result.Response,
			result.ExactMatchScore, result.LLMMatchScore, result.CosineSimilarityScore,
			metricsJSON, timingJSON, nullString(result.Error), result.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetExperimentResults returns an experiment's results, optionally limited
// to one test case, oldest first
func GetExperimentResults(experimentID, testCaseID string) ([]model.ExperimentResult, error) {
	query := `
		SELECT id, experiment_id, test_case_id, model_id, response,
			exact_match_score, llm_match_score, cosine_similarity_score,
			metrics, timing, error, created_at
		FROM experiment_results WHERE experiment_id = ?
	`
	args := []any{experimentID}
	if testCaseID != "" {
		query += " AND test_case_id = ?"
		args = append(args, testCaseID)
	}
	query += " ORDER BY created_at"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.ExperimentResult{}
	for rows.Next() {
		var r model.ExperimentResult
		var exact, judge, cosine sql.NullFloat64
		var metricsStr, timingStr, errStr sql.NullString

		err := rows.Scan(
			&r.ID, &r.ExperimentID, &r.TestCaseID, &r.ModelID, &r.Response,
			&exact, &judge, &cosine,
			&metricsStr, &timingStr, &errStr, &r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		r.ExactMatchScore = floatPtr(exact)
		r.LLMMatchScore = floatPtr(judge)
		r.CosineSimilarityScore = floatPtr(cosine)
		r.Error = errStr.String

		// Parse JSON fields
		if metricsStr.Valid {
			json.Unmarshal([]byte(metricsStr.String), &r.Metrics)
		}
		if timingStr.Valid {
			r.Timing = &model.TimingInfo{}
			json.Unmarshal([]byte(timingStr.String), r.Timing)
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

// GetExperimentSummary aggregates an experiment's results per model in the
// experiment's model order. Averages cover results without an error.
func GetExperimentSummary(experimentID string) ([]model.ModelSummary, error) {
	models, err := experimentModels(experimentID)
	if err != nil {
		return nil, err
	}
	results, err := GetExperimentResults(experimentID, "")
	if err != nil {
		return nil, err
	}

	type acc struct {
		summary model.ModelSummary
		sums    model.Scores
		counts  map[model.MetricKind]int
	}
	byModel := make(map[string]*acc, len(models))
	order := make([]string, 0, len(models))
	for _, m := range models {
		byModel[m.ID] = &acc{
			summary: model.ModelSummary{ModelID: m.ID, Model: m.Value},
			sums:    model.Scores{},
			counts:  map[model.MetricKind]int{},
		}
		order = append(order, m.ID)
	}

	for _, r := range results {
		a, ok := byModel[r.ModelID]
		if !ok {
			continue
		}
		a.summary.TotalTests++
		if r.Error != "" {
			continue
		}
		a.summary.SuccessfulTests++
		for k, v := range r.Metrics {
			a.sums[k] += v
			a.counts[k]++
		}
	}

	out := make([]model.ModelSummary, 0, len(order))
	for _, id := range order {
		a := byModel[id]
		a.summary.Averages = model.Scores{}
		for k, sum := range a.sums {
			a.summary.Averages[k] = sum / float64(a.counts[k])
		}
		out = append(out, a.summary)
	}
	return out, nil
}

func nullJSON(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case model.Scores:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *model.TimingInfo:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}
