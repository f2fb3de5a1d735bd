package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opencode-ai/themesync/internal/models"
)

// Theme repository errors.
var (
	ErrThemeNotFound = errors.New("theme not found")
)

// ThemeRepository persists theme definitions.
type ThemeRepository struct {
	db *DB
}

// NewThemeRepository creates a new ThemeRepository.
func NewThemeRepository(db *DB) *ThemeRepository {
	return &ThemeRepository{db: db}
}

type themeExecer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const themeColumns = `id, name, description, mode, builtin, colors_json, assignments_json, created_at, updated_at`

// Save inserts or replaces a theme.
func (r *ThemeRepository) Save(ctx context.Context, theme *models.Theme) error {
	return r.saveWith(ctx, r.db, theme)
}

// SaveAll replaces the stored set of themes in one transaction.
func (r *ThemeRepository) SaveAll(ctx context.Context, themes []*models.Theme) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin theme transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM themes`); err != nil {
		return fmt.Errorf("failed to clear themes: %w", err)
	}
	for _, theme := range themes {
		if err := r.saveWith(ctx, tx, theme); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *ThemeRepository) saveWith(ctx context.Context, execer themeExecer, theme *models.Theme) error {
	if theme == nil || theme.ID == "" {
		return fmt.Errorf("theme id is required")
	}

	now := time.Now().UTC()
	if theme.CreatedAt.IsZero() {
		theme.CreatedAt = now
	}
	if theme.UpdatedAt.IsZero() {
		theme.UpdatedAt = now
	}

	colors := theme.Colors
	if colors == nil {
		colors = []models.Color{}
	}
	colorsJSON, err := json.Marshal(colors)
	if err != nil {
		return fmt.Errorf("failed to marshal colors: %w", err)
	}
	assignments := theme.Assignments
	if assignments == nil {
		assignments = map[models.SemanticVar]string{}
	}
	assignmentsJSON, err := json.Marshal(assignments)
	if err != nil {
		return fmt.Errorf("failed to marshal assignments: %w", err)
	}

	_, err = execer.ExecContext(ctx, `
		INSERT INTO themes (`+themeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			mode = excluded.mode,
			builtin = excluded.builtin,
			colors_json = excluded.colors_json,
			assignments_json = excluded.assignments_json,
			updated_at = excluded.updated_at
	`,
		theme.ID,
		theme.Name,
		theme.Description,
		string(theme.Mode),
		boolToInt(theme.BuiltIn),
		string(colorsJSON),
		string(assignmentsJSON),
		theme.CreatedAt.UTC().Format(timestampFormat),
		theme.UpdatedAt.UTC().Format(timestampFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to save theme %s: %w", theme.ID, err)
	}
	return nil
}

// Get retrieves a theme by ID.
func (r *ThemeRepository) Get(ctx context.Context, id string) (*models.Theme, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+themeColumns+` FROM themes WHERE id = ?`, id)
	theme, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThemeNotFound
	}
	return theme, err
}

// List returns all themes ordered by name.
func (r *ThemeRepository) List(ctx context.Context) ([]*models.Theme, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+themeColumns+` FROM themes ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query themes: %w", err)
	}
	defer rows.Close()

	var themes []*models.Theme
	for rows.Next() {
		theme, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		themes = append(themes, theme)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating themes: %w", err)
	}
	return themes, nil
}

// Delete removes a theme.
func (r *ThemeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM themes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete theme: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrThemeNotFound
	}
	return nil
}

// Count returns the number of stored themes.
func (r *ThemeRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM themes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count themes: %w", err)
	}
	return n, nil
}

func (r *ThemeRepository) scan(row rowScanner) (*models.Theme, error) {
	var theme models.Theme
	var mode, colorsJSON, assignmentsJSON, createdAt, updatedAt string
	var builtin int

	if err := row.Scan(
		&theme.ID,
		&theme.Name,
		&theme.Description,
		&mode,
		&builtin,
		&colorsJSON,
		&assignmentsJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan theme: %w", err)
	}

	theme.Mode = models.Mode(mode)
	theme.BuiltIn = builtin != 0

	if err := json.Unmarshal([]byte(colorsJSON), &theme.Colors); err != nil {
		r.db.logger.Warn().Err(err).Str("theme_id", theme.ID).Msg("failed to parse theme colors")
	}
	if err := json.Unmarshal([]byte(assignmentsJSON), &theme.Assignments); err != nil {
		r.db.logger.Warn().Err(err).Str("theme_id", theme.ID).Msg("failed to parse theme assignments")
	}
	if theme.Assignments == nil {
		theme.Assignments = map[models.SemanticVar]string{}
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		theme.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		theme.UpdatedAt = t
	}

	return &theme, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
