package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"maps"
	"slices"

	"github.com/iliyamo/library-seat-reservation/internal/model"
)

// SettingsRepo stores policy overrides as key_name / JSON value rows.
type SettingsRepo struct{ DB *sql.DB }

func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{DB: db} }

// List returns every override.
func (r *SettingsRepo) List(ctx context.Context) ([]model.Setting, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT key_name, value, updated_at FROM settings ORDER BY key_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Setting
	for rows.Next() {
		var (
			s   model.Setting
			raw []byte
		)
		if err := rows.Scan(&s.KeyName, &raw, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Value = json.RawMessage(raw)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Overrides returns the overrides keyed by name.
func (r *SettingsRepo) Overrides(ctx context.Context) (map[string]json.RawMessage, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(list))
	for _, s := range list {
		out[s.KeyName] = s.Value
	}
	return out, nil
}

// UpsertMany writes all values in one transaction.
func (r *SettingsRepo) UpsertMany(ctx context.Context, values map[string]json.RawMessage) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO settings (key_name, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)`
	for _, k := range slices.Sorted(maps.Keys(values)) {
		if _, err := tx.ExecContext(ctx, q, k, string(values[k])); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
