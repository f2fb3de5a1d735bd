package models

import (
	"testing"
)

func TestParseColorRef(t *testing.T) {
	tests := []struct {
		in   string
		name string
		ok   bool
	}{
		{in: "var(--c1)", name: "c1", ok: true},
		{in: " var( --accent-2 ) ", name: "accent-2", ok: true},
		{in: "#111111", ok: false},
		{in: "var(--)", ok: false},
		{in: "var(c1)", ok: false},
	}

	for _, tt := range tests {
		name, ok := ParseColorRef(tt.in)
		if ok != tt.ok || name != tt.name {
			t.Errorf("ParseColorRef(%q) = (%q, %v), want (%q, %v)", tt.in, name, ok, tt.name, tt.ok)
		}
	}
}

func TestValidateColorValue(t *testing.T) {
	valid := []string{"#111", "#111111", "#11111180", "rgb(10, 20, 30)", "rgba(10,20,30,0.5)", "hsl(210 40% 50%)", "transparent"}
	for _, v := range valid {
		if err := ValidateColorValue(v); err != nil {
			t.Errorf("ValidateColorValue(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{"", "#12", "#gggggg", "blue-ish", "rgb(1,2)"}
	for _, v := range invalid {
		if err := ValidateColorValue(v); err == nil {
			t.Errorf("ValidateColorValue(%q) expected error", v)
		}
	}
}

func TestThemeResolve(t *testing.T) {
	theme := &Theme{
		ID:     "t1",
		Name:   "One",
		Colors: []Color{{Name: "c1", Value: "#111111"}},
		Assignments: map[SemanticVar]string{
			VarText:   "var(--c1)",
			VarAccent: "#ff0000",
			VarLink:   "var(--gone)",
		},
	}

	if got, ok := theme.Resolve(VarText); !ok || got != "#111111" {
		t.Fatalf("Resolve(TEXT) = (%q, %v)", got, ok)
	}
	if got, ok := theme.Resolve(VarAccent); !ok || got != "#ff0000" {
		t.Fatalf("Resolve(ACCENT) = (%q, %v)", got, ok)
	}
	if _, ok := theme.Resolve(VarLink); ok {
		t.Fatal("dangling reference should not resolve")
	}
	if _, ok := theme.Resolve(VarHeading); ok {
		t.Fatal("unset variable should not resolve")
	}
}

func TestThemeValidate(t *testing.T) {
	theme := &Theme{
		ID:     "t1",
		Name:   "One",
		Mode:   ModeDark,
		Colors: []Color{{Name: "c1", Value: "#111111"}},
		Assignments: map[SemanticVar]string{
			VarText: "var(--c1)",
		},
	}
	if err := theme.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	broken := theme.Clone()
	broken.Colors = append(broken.Colors, Color{Name: "c1", Value: "#000000"})
	broken.Assignments[VarLink] = "var(--missing)"
	broken.Mode = Mode("sepia")
	err := broken.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	verrs, ok := err.(*ValidationErrors)
	if !ok {
		t.Fatalf("expected *ValidationErrors, got %T", err)
	}
	if len(verrs.Errors) != 3 {
		t.Fatalf("expected 3 validation errors, got %d: %v", len(verrs.Errors), err)
	}
}

func TestThemeCloneIsDeep(t *testing.T) {
	theme := &Theme{
		ID:          "t1",
		Colors:      []Color{{Name: "c1", Value: "#111111"}},
		Assignments: map[SemanticVar]string{VarText: "var(--c1)"},
	}
	clone := theme.Clone()
	clone.Colors[0].Value = "#222222"
	clone.Assignments[VarText] = "#333333"

	if theme.Colors[0].Value != "#111111" {
		t.Fatal("palette shared between clone and original")
	}
	if theme.Assignments[VarText] != "var(--c1)" {
		t.Fatal("assignments shared between clone and original")
	}
}

func TestSuggestMode(t *testing.T) {
	if m, ok := SuggestMode("#111111"); !ok || m != ModeDark {
		t.Fatalf("SuggestMode(#111111) = (%q, %v)", m, ok)
	}
	if m, ok := SuggestMode("#fafafa"); !ok || m != ModeLight {
		t.Fatalf("SuggestMode(#fafafa) = (%q, %v)", m, ok)
	}
	if _, ok := SuggestMode("rgb(0,0,0)"); ok {
		t.Fatal("non-hex value should not suggest a mode")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("Dark"); err != nil || m != ModeDark {
		t.Fatalf("ParseMode(Dark) = (%q, %v)", m, err)
	}
	if m, err := ParseMode("none"); err != nil || m != "" {
		t.Fatalf("ParseMode(none) = (%q, %v)", m, err)
	}
	if _, err := ParseMode("sepia"); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}
