package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"xbanner/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	tableStmt := `
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT,
		data BLOB,
		created_at INTEGER,
		updated_at INTEGER
	);`
	if _, err = db.Exec(tableStmt); err != nil {
		log.Fatalf("failed to create templates table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) List(ctx context.Context) ([]*core.SavedTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM templates ORDER BY created_at DESC LIMIT ?", core.MaxTemplates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*core.SavedTemplate
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t core.SavedTemplate
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse stored template: %w", err)
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*core.SavedTemplate, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM templates WHERE id = ?", id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("template with id %s not found", id)
		}
		return nil, err
	}
	var t core.SavedTemplate
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse stored template: %w", err)
	}
	return &t, nil
}

func (s *sqliteStore) Put(ctx context.Context, template *core.SavedTemplate) error {
	if template == nil || template.ID == "" {
		return fmt.Errorf("template ID cannot be empty for put operation")
	}
	data, err := json.Marshal(template)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO templates (id, name, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			data = excluded.data,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		template.ID, template.Name, data, template.CreatedAt, template.UpdatedAt)
	if err != nil {
		return err
	}

	// Evict the oldest records beyond the cap.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM templates WHERE id NOT IN (
			SELECT id FROM templates ORDER BY created_at DESC LIMIT ?
		)`, core.MaxTemplates)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logrus.WithField("template_id", template.ID).Info("Template saved")
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id)
	return err
}

func (s *sqliteStore) Replace(ctx context.Context, templates []*core.SavedTemplate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM templates"); err != nil {
		return err
	}
	for _, t := range core.CapTemplates(templates) {
		if t == nil || t.ID == "" {
			continue
		}
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO templates (id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			t.ID, t.Name, data, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
