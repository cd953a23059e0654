package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var (
	db   *sql.DB
	once sync.Once

	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
)

// InitDB initializes the database connection and creates tables
func InitDB(dbPath string) error {
	// Ensure data directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	var initErr error
	once.Do(func() {
		// _foreign_keys applies the pragma on every pooled connection.
		conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
		if err != nil {
			initErr = err
			return
		}

		// Set connection pool parameters
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
		db = conn
	})
	if initErr != nil {
		return initErr
	}

	// Create tables
	if err := createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	zap.L().Info("Database initialized successfully",
		zap.String("path", dbPath))

	return nil
}

// GetDB returns the database instance
func GetDB() *sql.DB {
	return db
}

// Close closes the database connection
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// createTables creates all tables if they don't exist
func createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS models (
			id TEXT PRIMARY KEY,
			value TEXT UNIQUE NOT NULL,
			label TEXT NOT NULL,
			category TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS experiments (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			system_prompt TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS experiment_models (
			experiment_id TEXT NOT NULL,
			model_id TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (experiment_id, model_id),
			FOREIGN KEY (experiment_id) REFERENCES experiments(id) ON DELETE CASCADE,
			FOREIGN KEY (model_id) REFERENCES models(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS test_cases (
			id TEXT PRIMARY KEY,
			user_message TEXT NOT NULL,
			expected_output TEXT NOT NULL,
			metrics TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS experiment_test_cases (
			experiment_id TEXT NOT NULL,
			test_case_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (experiment_id, test_case_id),
			FOREIGN KEY (experiment_id) REFERENCES experiments(id) ON DELETE CASCADE,
			FOREIGN KEY (test_case_id) REFERENCES test_cases(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_experiment_test_cases_test_case_id ON experiment_test_cases(test_case_id)`,

		`CREATE TABLE IF NOT EXISTS experiment_results (
			id TEXT PRIMARY KEY,
			experiment_id TEXT NOT NULL,
			test_case_id TEXT NOT NULL,
			model_id TEXT NOT NULL,
			response TEXT NOT NULL,
			exact_match_score REAL,
			llm_match_score REAL,
			cosine_similarity_score REAL,
			metrics TEXT,
			timing TEXT,
			error TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (experiment_id) REFERENCES experiments(id) ON DELETE CASCADE,
			FOREIGN KEY (test_case_id) REFERENCES test_cases(id) ON DELETE CASCADE,
			FOREIGN KEY (model_id) REFERENCES models(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_experiment_results_experiment_id ON experiment_results(experiment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_experiment_results_test_case_id ON experiment_results(test_case_id)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", table, err)
		}
	}

	return nil
}

// WithTx executes a function within a transaction
func WithTx(fn func(*sql.Tx) error) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}

func newID() string {
	return uuid.NewString()
}

// timeLayout is fixed width so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}
