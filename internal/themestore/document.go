package themestore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/opencode-ai/themesync/internal/models"
	"gopkg.in/yaml.v3"
)

// document is the serialized form of a theme used by import, export and
// the built-in YAML files.
type document struct {
	ID          string            `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Mode        string            `json:"mode,omitempty" yaml:"mode,omitempty"`
	Colors      palette           `json:"colors" yaml:"colors"`
	Assignments map[string]string `json:"assignments" yaml:"assignments"`
}

// palette accepts either a list of {name, value} entries or an object
// mapping names to values. Object order is preserved.
type palette []models.Color

func (p *palette) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	if data[0] == '[' {
		var list []models.Color
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*p = list
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("colors must be a list or an object")
	}
	var out []models.Color
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("color name must be a string")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("color %q: %w", key, err)
		}
		out = append(out, models.Color{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

func (p *palette) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []models.Color
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
	case yaml.MappingNode:
		out := make([]models.Color, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			out = append(out, models.Color{
				Name:  node.Content[i].Value,
				Value: node.Content[i+1].Value,
			})
		}
		*p = out
	default:
		return fmt.Errorf("colors must be a list or a mapping")
	}
	return nil
}

func documentFromTheme(t *models.Theme) document {
	doc := document{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Mode:        string(t.Mode),
		Colors:      palette(append([]models.Color{}, t.Colors...)),
		Assignments: make(map[string]string, len(t.Assignments)),
	}
	for k, v := range t.Assignments {
		doc.Assignments[string(k)] = v
	}
	return doc
}

// decodeDocument parses JSON, falling back to YAML for non-JSON input.
func decodeDocument(data []byte) (document, error) {
	var doc document
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return doc, fmt.Errorf("%w: empty input", ErrInvalidImport)
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return doc, fmt.Errorf("%w: %v", ErrInvalidImport, err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return doc, nil
}

// toTheme validates the document and converts it under id.
func (d document) toTheme(id string) (*models.Theme, error) {
	mode, err := models.ParseMode(d.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	theme := &models.Theme{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Mode:        mode,
		Colors:      append([]models.Color{}, d.Colors...),
		Assignments: make(map[models.SemanticVar]string, len(d.Assignments)),
	}
	for key, value := range d.Assignments {
		v, ok := models.ParseSemanticVar(key)
		if !ok {
			return nil, fmt.Errorf("%w: %w %q", ErrInvalidImport, ErrUnknownVariable, key)
		}
		theme.Assignments[v] = value
	}
	if err := theme.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return theme, nil
}
