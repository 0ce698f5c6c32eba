// ABOUTME: SQLite persistence for tasks and steps so history survives server restarts.
// ABOUTME: Provides open/save/load operations with WAL mode and upsert semantics per task.

package task

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed mirror of the task map. The in-memory Manager
// remains the source of truth while the server runs; the store exists so
// GET /tasks history is not lost across restarts.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the task database at path and ensures the
// schema exists.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			prompt TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS steps (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY (task_id) REFERENCES tasks(id)
		);

		CREATE INDEX IF NOT EXISTS idx_steps_task ON steps(task_id);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts the task row and replaces its step rows. Steps are replaced
// wholesale because the in-memory slice is authoritative and small.
func (s *Store) Save(t *Task) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO tasks (id, prompt, status, created_at, error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error`,
		t.ID, t.Prompt, string(t.Status), t.CreatedAt.Format(time.RFC3339Nano), t.Error)
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM steps WHERE task_id = ?`, t.ID); err != nil {
		return fmt.Errorf("clear steps for %s: %w", t.ID, err)
	}
	for _, step := range t.Steps {
		_, err := tx.Exec(`
			INSERT INTO steps (id, task_id, type, content, timestamp)
			VALUES (?, ?, ?, ?, ?)`,
			step.ID, t.ID, step.Type, step.Content, step.Timestamp)
		if err != nil {
			return fmt.Errorf("insert step %s: %w", step.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadAll returns every persisted task with its steps in insertion order
// (step IDs are ULIDs, so lexical order matches creation order).
func (s *Store) LoadAll() ([]*Task, error) {
	rows, err := s.db.Query(`SELECT id, prompt, status, created_at, error FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	byID := make(map[string]*Task)
	for rows.Next() {
		var t Task
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Prompt, (*string)(&t.Status), &createdAt, &t.Error); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", t.ID, err)
		}
		t.CreatedAt = ts
		t.Steps = []Step{}
		tasks = append(tasks, &t)
		byID[t.ID] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	stepRows, err := s.db.Query(`SELECT id, task_id, type, content, timestamp FROM steps ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer stepRows.Close()

	for stepRows.Next() {
		var step Step
		var taskID string
		if err := stepRows.Scan(&step.ID, &taskID, &step.Type, &step.Content, &step.Timestamp); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.Steps = append(t.Steps, step)
		}
	}
	if err := stepRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}

	return tasks, nil
}
