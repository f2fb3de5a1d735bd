// Package themestore holds theme definitions and the operations that edit them.
package themestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opencode-ai/themesync/internal/logging"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/rs/zerolog"
)

// Store errors.
var (
	ErrThemeNotFound   = errors.New("theme not found")
	ErrBuiltinReadOnly = errors.New("built-in themes are read-only; duplicate it first")
	ErrInvalidName     = errors.New("invalid theme name")
	ErrInvalidColor    = errors.New("invalid color")
	ErrInvalidImport   = errors.New("invalid theme data")
	ErrUnknownVariable = errors.New("unknown semantic variable")
	ErrColorNotFound   = errors.New("color not found")
	ErrColorExists     = errors.New("color already exists")
)

// Repository persists themes. The db package's ThemeRepository satisfies it.
type Repository interface {
	Save(ctx context.Context, theme *models.Theme) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Theme, error)
}

// Store keeps themes in memory and writes changes through to a Repository.
// All returned themes are copies.
type Store struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string

	mu     sync.RWMutex
	themes map[string]*models.Theme
}

// New creates an empty store. repo may be nil for a memory-only store.
func New(repo Repository) *Store {
	return &Store{
		repo:   repo,
		logger: logging.Component("themestore"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
		themes: make(map[string]*models.Theme),
	}
}

// Load replaces the in-memory set with the repository contents. An empty
// repository is seeded with the built-in themes.
func (s *Store) Load(ctx context.Context) error {
	var themes []*models.Theme
	if s.repo != nil {
		loaded, err := s.repo.List(ctx)
		if err != nil {
			return fmt.Errorf("load themes: %w", err)
		}
		themes = loaded
	}

	if len(themes) == 0 {
		builtins, err := LoadBuiltinThemes()
		if err != nil {
			return err
		}
		for _, theme := range builtins {
			theme.CreatedAt = s.now()
			theme.UpdatedAt = theme.CreatedAt
			if err := s.persist(ctx, theme); err != nil {
				return err
			}
		}
		themes = builtins
		s.logger.Info().Int("count", len(builtins)).Msg("seeded built-in themes")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.themes = make(map[string]*models.Theme, len(themes))
	for _, theme := range themes {
		s.themes[theme.ID] = theme
	}
	return nil
}

// Get returns the theme with id.
func (s *Store) Get(id string) (*models.Theme, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	theme, ok := s.themes[id]
	if !ok {
		return nil, false
	}
	return theme.Clone(), true
}

// List returns all themes ordered by name, then id.
func (s *Store) List() []*models.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Theme, 0, len(s.themes))
	for _, theme := range s.themes {
		out = append(out, theme.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of themes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.themes)
}

// Create adds an empty user theme.
func (s *Store) Create(ctx context.Context, name string) (*models.Theme, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	now := s.now()
	theme := &models.Theme{
		ID:          s.newID(),
		Name:        name,
		Colors:      []models.Color{},
		Assignments: map[models.SemanticVar]string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.insert(ctx, theme)
}

// Duplicate copies a theme into a new editable user theme.
func (s *Store) Duplicate(ctx context.Context, id string) (*models.Theme, error) {
	source, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrThemeNotFound, id)
	}
	now := s.now()
	source.ID = s.newID()
	source.Name = source.Name + " (copy)"
	source.BuiltIn = false
	source.CreatedAt = now
	source.UpdatedAt = now
	return s.insert(ctx, source)
}

// Delete removes a theme. Built-in themes can be deleted too.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.themes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrThemeNotFound, id)
	}
	if s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete theme %s: %w", id, err)
		}
	}
	delete(s.themes, id)
	s.logger.Debug().Str("theme", id).Msg("theme deleted")
	return nil
}

// Import parses a serialized theme (JSON, or YAML) and adds it. The id is
// regenerated when missing or already taken.
func (s *Store) Import(ctx context.Context, data []byte) (*models.Theme, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidImport)
	}

	s.mu.RLock()
	_, taken := s.themes[doc.ID]
	s.mu.RUnlock()

	id := doc.ID
	if id == "" || taken {
		id = s.newID()
	}

	theme, err := doc.toTheme(id)
	if err != nil {
		return nil, err
	}
	theme.CreatedAt = s.now()
	theme.UpdatedAt = theme.CreatedAt
	return s.insert(ctx, theme)
}

// Export serializes one theme as indented JSON.
func (s *Store) Export(id string) ([]byte, error) {
	theme, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrThemeNotFound, id)
	}
	data, err := json.MarshalIndent(documentFromTheme(theme), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode theme %s: %w", id, err)
	}
	return data, nil
}

// ToJSON serializes every theme in List order.
func (s *Store) ToJSON() ([]byte, error) {
	themes := s.List()
	docs := make([]document, 0, len(themes))
	for _, theme := range themes {
		docs = append(docs, documentFromTheme(theme))
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode themes: %w", err)
	}
	return data, nil
}

// Rename changes the display name.
func (s *Store) Rename(ctx context.Context, id, name string) (*models.Theme, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	return s.mutate(ctx, id, func(t *models.Theme) error {
		t.Name = name
		return nil
	})
}

// SetDescription replaces the description.
func (s *Store) SetDescription(ctx context.Context, id, description string) (*models.Theme, error) {
	return s.mutate(ctx, id, func(t *models.Theme) error {
		t.Description = strings.TrimSpace(description)
		return nil
	})
}

// SetMode sets or clears (empty mode) the required mode.
func (s *Store) SetMode(ctx context.Context, id string, mode models.Mode) (*models.Theme, error) {
	if mode != "" && !mode.Valid() {
		return nil, fmt.Errorf("invalid mode %q", mode)
	}
	return s.mutate(ctx, id, func(t *models.Theme) error {
		t.Mode = mode
		return nil
	})
}

// SetColor adds a palette entry or updates its value.
func (s *Store) SetColor(ctx context.Context, id, name, value string) (*models.Theme, error) {
	if err := models.ValidateColorName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidColor, err)
	}
	value = strings.TrimSpace(value)
	if err := models.ValidateColorValue(value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidColor, err)
	}
	return s.mutate(ctx, id, func(t *models.Theme) error {
		if i := t.ColorIndex(name); i >= 0 {
			t.Colors[i].Value = value
			return nil
		}
		t.Colors = append(t.Colors, models.Color{Name: name, Value: value})
		return nil
	})
}

// RenameColor renames a palette entry and rewrites every assignment that
// referenced it.
func (s *Store) RenameColor(ctx context.Context, id, oldName, newName string) (*models.Theme, error) {
	if err := models.ValidateColorName(newName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidColor, err)
	}
	return s.mutate(ctx, id, func(t *models.Theme) error {
		i := t.ColorIndex(oldName)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrColorNotFound, oldName)
		}
		if oldName == newName {
			return nil
		}
		if t.ColorIndex(newName) >= 0 {
			return fmt.Errorf("%w: %s", ErrColorExists, newName)
		}
		t.Colors[i].Name = newName
		for v, raw := range t.Assignments {
			if ref, ok := models.ParseColorRef(raw); ok && ref == oldName {
				t.Assignments[v] = models.ColorRef(newName)
			}
		}
		return nil
	})
}

// DeleteColor removes a palette entry and prunes assignments that referenced it.
func (s *Store) DeleteColor(ctx context.Context, id, name string) (*models.Theme, error) {
	return s.mutate(ctx, id, func(t *models.Theme) error {
		i := t.ColorIndex(name)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrColorNotFound, name)
		}
		t.Colors = append(t.Colors[:i], t.Colors[i+1:]...)
		for v, raw := range t.Assignments {
			if ref, ok := models.ParseColorRef(raw); ok && ref == name {
				delete(t.Assignments, v)
			}
		}
		return nil
	})
}

// Assign maps a semantic variable to a palette entry or a raw color. A bare
// palette name is stored as a reference.
func (s *Store) Assign(ctx context.Context, id, variable, value string) (*models.Theme, error) {
	v, ok := models.ParseSemanticVar(variable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, variable)
	}
	value = strings.TrimSpace(value)
	return s.mutate(ctx, id, func(t *models.Theme) error {
		if ref, isRef := models.ParseColorRef(value); isRef {
			if t.ColorIndex(ref) < 0 {
				return fmt.Errorf("%w: %s", ErrColorNotFound, ref)
			}
			t.Assignments[v] = models.ColorRef(ref)
			return nil
		}
		if t.ColorIndex(value) >= 0 {
			t.Assignments[v] = models.ColorRef(value)
			return nil
		}
		if err := models.ValidateColorValue(value); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidColor, err)
		}
		t.Assignments[v] = value
		return nil
	})
}

// Unassign clears a semantic variable so it inherits from the host.
func (s *Store) Unassign(ctx context.Context, id, variable string) (*models.Theme, error) {
	v, ok := models.ParseSemanticVar(variable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, variable)
	}
	return s.mutate(ctx, id, func(t *models.Theme) error {
		delete(t.Assignments, v)
		return nil
	})
}

func (s *Store) insert(ctx context.Context, theme *models.Theme) (*models.Theme, error) {
	if err := theme.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.themes[theme.ID]; exists {
		return nil, fmt.Errorf("theme %s already exists", theme.ID)
	}
	if err := s.persist(ctx, theme); err != nil {
		return nil, err
	}
	s.themes[theme.ID] = theme
	s.logger.Debug().Str("theme", theme.ID).Str("name", theme.Name).Msg("theme added")
	return theme.Clone(), nil
}

// mutate applies fn to a copy of a user theme and commits it when valid.
func (s *Store) mutate(ctx context.Context, id string, fn func(t *models.Theme) error) (*models.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.themes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrThemeNotFound, id)
	}
	if current.BuiltIn {
		return nil, ErrBuiltinReadOnly
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()

	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.themes[id] = next
	return next.Clone(), nil
}

func (s *Store) persist(ctx context.Context, theme *models.Theme) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(ctx, theme); err != nil {
		return fmt.Errorf("save theme %s: %w", theme.ID, err)
	}
	return nil
}
