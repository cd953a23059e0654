package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/wzyjerry/llm-arena/internal/model"
	"go.uber.org/zap"
)

// SeedCatalog inserts catalog entries whose value is not yet stored.
// Existing rows keep their ids so stored results stay linked.
func SeedCatalog(entries []model.CatalogModel) error {
	return WithTx(func(tx *sql.Tx) error {
		query := `
			INSERT INTO models (id, value, label, category, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(value) DO NOTHING
		`
		inserted := 0
		for _, e := range entries {
			if e.Value == "" {
				continue
			}
			label := e.Label
			if label == "" {
				label = e.Value
			}
			result, err := tx.Exec(query, newID(), e.Value, label, e.Category, now())
			if err != nil {
				return fmt.Errorf("failed to seed model %s: %w", e.Value, err)
			}
			n, _ := result.RowsAffected()
			inserted += int(n)
		}
		zap.L().Info("Model catalog seeded",
			zap.Int("entries", len(entries)),
			zap.Int("inserted", inserted))
		return nil
	})
}

// GetAllModels returns the catalog ordered by category and label
func GetAllModels() ([]model.CatalogModel, error) {
	query := `
		SELECT id, value, label, category
		FROM models ORDER BY category, label
	`

	rows, err := db.Query(query)
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

// GetModelByID returns a catalog model by ID
func GetModelByID(id string) (*model.CatalogModel, error) {
	return getModel(`SELECT id, value, label, category FROM models WHERE id = ?`, id)
}

// GetModelByValue returns a catalog model by its provider model ID
func GetModelByValue(value string) (*model.CatalogModel, error) {
	return getModel(`SELECT id, value, label, category FROM models WHERE value = ?`, value)
}

func getModel(query string, arg string) (*model.CatalogModel, error) {
	m := &model.CatalogModel{}
	err := db.QueryRow(query, arg).Scan(&m.ID, &m.Value, &m.Label, &m.Category)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// resolveModelIDs checks that every id exists and returns them deduplicated
// in request order.
func resolveModelIDs(tx *sql.Tx, ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	var missing []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		var exists int
		err := tx.QueryRow(`SELECT 1 FROM models WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown model ids %s: %w", strings.Join(missing, ", "), ErrNotFound)
	}
	return out, nil
}
